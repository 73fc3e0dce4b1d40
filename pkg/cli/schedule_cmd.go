package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fec-lake/internal/domain"
	"fec-lake/internal/service/pipeline"
)

func newScheduleCmd(opts *globalOptions) *cobra.Command {
	var (
		spec string
		now  bool
		only []string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the job list on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if spec == "" {
				spec = cfg.Schedule
			}
			if spec == "" {
				return fmt.Errorf("no schedule: pass --cron or set SCHEDULE")
			}
			jobs, err := selectJobs(cfg, only)
			if err != nil {
				return err
			}

			logger := newLogger(cfg, cmd.ErrOrStderr())
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := pipeline.NewScheduler(a.pipeline, jobs, logger)
			scheduler.OnReport = func(r *domain.RunReport) {
				if err := printReport(cmd, r); err != nil {
					logger.Warn("failed to print run report", "error", err)
				}
			}
			if err := scheduler.Schedule(spec); err != nil {
				return err
			}

			if now {
				if err := runOnce(ctx, cmd, a, jobs); err != nil {
					logger.Warn("initial run finished with failures", "error", err)
				}
			}

			scheduler.Start(ctx)
			logger.Info("waiting for next run", "next", scheduler.Next())
			<-ctx.Done()
			scheduler.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Five-field cron expression (default $SCHEDULE)")
	cmd.Flags().BoolVar(&now, "now", false, "Also run once immediately")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Schedule only jobs of these categories (comma separated)")
	return cmd
}
