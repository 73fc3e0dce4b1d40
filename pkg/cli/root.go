// Package cli implements the fecetl command line.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = json.NewEncoder(os.Stdout).Encode(map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		output string
		opts   globalOptions
	)

	rootCmd := &cobra.Command{
		Use:           "fecetl",
		Short:         "FEC bulk data to Parquet",
		Long:          "Downloads FEC bulk-data archives, extracts their tables and writes one typed Parquet file per job.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return validateOutputFormat(output)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Pipeline YAML file (default $FECETL_CONFIG, then built-in)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file read before the environment")

	rootCmd.AddCommand(newRunCmd(&opts))
	rootCmd.AddCommand(newScheduleCmd(&opts))
	rootCmd.AddCommand(newJobsCmd(&opts))
	rootCmd.AddCommand(newSchemasCmd(&opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
