package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fec-lake/internal/domain"
)

// Runner executes a job list once.
type Runner interface {
	Run(ctx context.Context, jobs []domain.Job) *domain.RunReport
}

var _ Runner = (*Pipeline)(nil)

// Scheduler runs the full job list on a cron schedule. A tick that fires
// while the previous run is still in progress is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	jobs   []domain.Job
	logger *slog.Logger

	// OnReport, when set, receives the report of every scheduled run.
	OnReport func(*domain.RunReport)

	mu    sync.Mutex
	ctx   context.Context
	entry cron.EntryID
}

// NewScheduler creates a scheduler that hands jobs to runner on every tick.
func NewScheduler(runner Runner, jobs []domain.Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner: runner,
		jobs:   jobs,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Schedule registers the job list under a standard five-field cron expression.
// Calling it again replaces the previous schedule.
func (s *Scheduler) Schedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = entryID
	s.logger.Info("scheduled job list", "schedule", spec, "jobs", len(s.jobs))
	return nil
}

// Start begins firing ticks. Runs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("pipeline scheduler started")
}

// Stop stops the scheduler and waits for a run in progress to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("pipeline scheduler stopped")
}

// Next reports when the next tick fires. It is zero before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	report := s.runner.Run(ctx, s.jobs)
	if err := report.Err(); err != nil {
		s.logger.Warn("scheduled run finished with failures", "run_id", report.RunID, "error", err)
	}
	if s.OnReport != nil {
		s.OnReport(report)
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
