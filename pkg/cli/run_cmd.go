package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fec-lake/internal/domain"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var (
		failFast bool
		verify   bool
		only     []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every configured job once",
		Long: "Syncs each job's archive from the bucket, extracts its table and writes\n" +
			"{parquet_dir}/{category}_{year}.parquet. A failed job does not stop the run\n" +
			"unless --fail-fast is set; the command exits non-zero if any job failed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("fail-fast") {
				cfg.FailFast = failFast
			}
			if cmd.Flags().Changed("verify") {
				cfg.Verify = verify
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

			return runOnce(ctx, cmd, a, jobs)
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Skip remaining jobs after the first failure")
	cmd.Flags().BoolVar(&verify, "verify", false, "Re-read every artifact with DuckDB after writing")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Run only jobs of these categories (comma separated)")
	return cmd
}

type outcomeView struct {
	Category string          `json:"category"`
	Year     int             `json:"year"`
	Key      string          `json:"key"`
	State    domain.JobState `json:"state"`
	Sync     string          `json:"sync,omitempty"`
	Source   string          `json:"source,omitempty"`
	Artifact string          `json:"artifact,omitempty"`
	Rows     int64           `json:"rows"`
	Duration string          `json:"duration"`
	Error    string          `json:"error,omitempty"`
}

type reportView struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Done       int           `json:"done"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Jobs       []outcomeView `json:"jobs"`
}

func newReportView(r *domain.RunReport) reportView {
	v := reportView{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Done:       r.Count(domain.JobDone),
		Failed:     r.Count(domain.JobFailed),
		Skipped:    r.Count(domain.JobSkipped),
		Jobs:       make([]outcomeView, len(r.Outcomes)),
	}
	for i, o := range r.Outcomes {
		v.Jobs[i] = outcomeView{
			Category: o.Job.Category,
			Year:     o.Job.Year,
			Key:      o.Job.RemoteKey,
			State:    o.State,
			Sync:     string(o.Sync),
			Source:   o.Source,
			Artifact: o.Artifact,
			Rows:     o.Rows,
			Duration: o.Duration.Round(time.Millisecond).String(),
			Error:    o.ErrorMessage(),
		}
	}
	return v
}

func printReport(cmd *cobra.Command, r *domain.RunReport) error {
	v := newReportView(r)
	if getOutputFormat(cmd) == "json" {
		return printJSON(cmd.OutOrStdout(), v)
	}
	w := cmd.OutOrStdout()
	if err := writeReportTable(w, v); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nrun %s: %d done, %d failed, %d skipped\n", v.RunID, v.Done, v.Failed, v.Skipped)
	return err
}

func writeReportTable(w io.Writer, v reportView) error {
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "JOB\tSTATE\tSYNC\tROWS\tDURATION\tERROR")
	for _, j := range v.Jobs {
		_, _ = fmt.Fprintf(tw, "%s_%d\t%s\t%s\t%d\t%s\t%s\n", j.Category, j.Year, j.State, dash(j.Sync), j.Rows, j.Duration, dash(j.Error))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// runOnce runs jobs, prints the report and returns its error.
func runOnce(ctx context.Context, cmd *cobra.Command, a *app, jobs []domain.Job) error {
	report := a.pipeline.Run(ctx, jobs)
	if err := printReport(cmd, report); err != nil {
		return err
	}
	return report.Err()
}
