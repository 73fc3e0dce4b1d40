// Package pipeline runs the sync, extract, convert sequence for a job list.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fec-lake/internal/archive"
	"fec-lake/internal/convert"
	"fec-lake/internal/domain"
)

// Syncer refreshes the local copy of a remote archive.
type Syncer interface {
	Sync(ctx context.Context, remoteKey, localPath string) (domain.SyncResult, error)
}

// Converter writes a typed artifact from an extracted table.
type Converter interface {
	Convert(ctx context.Context, inputPath string, s domain.Schema, outputPath string) (convert.Result, error)
}

// ExtractFunc unpacks archivePath into destDir.
type ExtractFunc func(archivePath, destDir string) error

// Config holds the directories and failure policy of a Pipeline.
type Config struct {
	RawDataDir string // local archive cache, mirrors remote keys
	ParquetDir string // artifact output directory
	WorkDir    string // parent of per-job scratch dirs; empty uses os.TempDir
	FailFast   bool   // skip remaining jobs after the first failure
}

// Pipeline processes jobs strictly one after another.
type Pipeline struct {
	cfg       Config
	syncer    Syncer
	extract   ExtractFunc
	converter Converter
	schemas   domain.SchemaLookup
	verifier  domain.ArtifactVerifier
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithVerifier re-reads every artifact with v after conversion.
func WithVerifier(v domain.ArtifactVerifier) Option {
	return func(p *Pipeline) { p.verifier = v }
}

// WithExtractor replaces archive.Extract.
func WithExtractor(fn ExtractFunc) Option {
	return func(p *Pipeline) { p.extract = fn }
}

// New creates a Pipeline.
func New(cfg Config, syncer Syncer, converter Converter, schemas domain.SchemaLookup, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{
		cfg:       cfg,
		syncer:    syncer,
		extract:   archive.Extract,
		converter: converter,
		schemas:   schemas,
		logger:    logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// LocalPath returns where the archive of job is cached.
func (p *Pipeline) LocalPath(job domain.Job) string {
	return filepath.Join(p.cfg.RawDataDir, filepath.FromSlash(job.RemoteKey))
}

// ArtifactPath returns where the artifact of job is written.
func (p *Pipeline) ArtifactPath(job domain.Job) string {
	return filepath.Join(p.cfg.ParquetDir, job.ArtifactFile())
}

// Run processes jobs in list order and reports one outcome per job.
//
// A failed job never stops the run unless FailFast is set, in which case the
// remaining jobs are skipped. Jobs not yet started when ctx is done are
// skipped as well. Callers decide the exit status from RunReport.Err.
func (p *Pipeline) Run(ctx context.Context, jobs []domain.Job) *domain.RunReport {
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Outcomes:  make([]domain.JobOutcome, 0, len(jobs)),
	}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("run started", "jobs", len(jobs), "fail_fast", p.cfg.FailFast)

	stopped := false
	for _, job := range jobs {
		if stopped || ctx.Err() != nil {
			report.Outcomes = append(report.Outcomes, domain.JobOutcome{Job: job, State: domain.JobSkipped})
			continue
		}

		out := p.runJob(ctx, job, logger)
		report.Outcomes = append(report.Outcomes, out)
		if out.State == domain.JobFailed && p.cfg.FailFast {
			stopped = true
		}
	}

	report.FinishedAt = time.Now().UTC()
	logger.Info("run finished",
		"done", report.Count(domain.JobDone),
		"failed", report.Count(domain.JobFailed),
		"skipped", report.Count(domain.JobSkipped),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report
}

// runJob turns every failure of one job, panics included, into a failed outcome.
func (p *Pipeline) runJob(ctx context.Context, job domain.Job, logger *slog.Logger) (out domain.JobOutcome) {
	logger = logger.With("category", job.Category, "year", job.Year, "remote_key", job.RemoteKey)
	start := time.Now()
	out = domain.JobOutcome{Job: job, State: domain.JobPending}

	defer func() {
		if r := recover(); r != nil {
			out.Err = &domain.JobError{Job: job, State: out.State, Err: fmt.Errorf("panic: %v", r)}
			out.State = domain.JobFailed
		}
		out.Duration = time.Since(start)
		if out.State == domain.JobFailed {
			logger.Error("job failed", "error", out.Err, "duration", out.Duration)
			return
		}
		logger.Info("job completed", "artifact", out.Artifact, "rows", out.Rows, "duration", out.Duration)
	}()

	if err := p.process(ctx, job, &out, logger); err != nil {
		out.Err = &domain.JobError{Job: job, State: out.State, Err: err}
		out.State = domain.JobFailed
	}
	return out
}

// process advances out.State as each stage completes.
func (p *Pipeline) process(ctx context.Context, job domain.Job, out *domain.JobOutcome, logger *slog.Logger) error {
	if err := job.Validate(); err != nil {
		return err
	}

	localPath := p.LocalPath(job)
	res, err := p.syncer.Sync(ctx, job.RemoteKey, localPath)
	if err != nil {
		return err
	}
	out.Sync = res
	out.State = domain.JobSynced

	workDir, cleanup, err := p.scratchDir(job, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := p.extract(localPath, workDir); err != nil {
		return err
	}
	out.State = domain.JobExtracted

	source, err := selectTable(workDir, logger)
	if err != nil {
		return err
	}
	out.Source = filepath.Base(source)

	schema, err := p.schemas.Lookup(job.Category)
	if err != nil {
		return err
	}

	artifact := p.ArtifactPath(job)
	result, err := p.converter.Convert(ctx, source, schema, artifact)
	if err != nil {
		return err
	}
	out.Artifact = result.Output
	out.Rows = result.Rows
	out.State = domain.JobConverted

	if p.verifier != nil {
		if err := p.verifier.Verify(ctx, result.Output, schema, result.Rows); err != nil {
			return err
		}
		out.State = domain.JobVerified
	}

	out.State = domain.JobDone
	return nil
}

// scratchDir creates a private directory for one job. cleanup removes it.
func (p *Pipeline) scratchDir(job domain.Job, logger *slog.Logger) (string, func(), error) {
	if p.cfg.WorkDir != "" {
		if err := os.MkdirAll(p.cfg.WorkDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(p.cfg.WorkDir, job.Name()+"-")
	if err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove work dir", "dir", dir, "error", err)
		}
	}, nil
}

// selectTable picks the source table among the top-level .txt files of dir.
// Candidates are taken in file name order; archives are expected to hold one.
func selectTable(dir string, logger *slog.Logger) (string, error) {
	entries, err := os.ReadDir(dir) // sorted by file name
	if err != nil {
		return "", fmt.Errorf("list %s: %w", dir, err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".txt") {
			continue
		}
		candidates = append(candidates, e.Name())
	}

	switch len(candidates) {
	case 0:
		return "", &domain.NoTableFoundError{Dir: dir}
	case 1:
	default:
		logger.Warn("archive holds more than one table, using the first",
			"selected", candidates[0],
			"candidates", candidates,
		)
	}
	return filepath.Join(dir, candidates[0]), nil
}
