package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

type jobView struct {
	Category string `json:"category"`
	Year     int    `json:"year"`
	Key      string `json:"key"`
	Archive  string `json:"archive"`
	Artifact string `json:"artifact"`
}

func newJobsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List configured jobs with their archive and artifact paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			views := make([]jobView, len(cfg.Jobs))
			for i, j := range cfg.Jobs {
				views[i] = jobView{
					Category: j.Category,
					Year:     j.Year,
					Key:      j.RemoteKey,
					Archive:  filepath.Join(cfg.RawDataDir, filepath.FromSlash(j.RemoteKey)),
					Artifact: filepath.Join(cfg.ParquetDir, j.ArtifactFile()),
				}
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), views)
			}
			tw := newTable(cmd.OutOrStdout())
			_, _ = fmt.Fprintln(tw, "CATEGORY\tYEAR\tKEY\tARTIFACT")
			for _, v := range views {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", v.Category, v.Year, v.Key, v.Artifact)
			}
			return tw.Flush()
		},
	}
}
