package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type columnView struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type schemaView struct {
	Category string       `json:"category"`
	Columns  []columnView `json:"columns"`
}

func newSchemasCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas [category]",
		Short: "List categories, or show the columns of one category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			registry, err := loadSchemas(cfg)
			if err != nil {
				return err
			}

			categories := registry.Categories()
			if len(args) == 1 {
				categories = args
			}

			views := make([]schemaView, 0, len(categories))
			for _, c := range categories {
				s, err := registry.Lookup(c)
				if err != nil {
					return err
				}
				v := schemaView{Category: s.Category, Columns: make([]columnView, len(s.Columns))}
				for i, col := range s.Columns {
					v.Columns[i] = columnView{Name: col.Name, Type: col.Type.String()}
				}
				views = append(views, v)
			}

			if getOutputFormat(cmd) == "json" {
				if len(args) == 1 {
					return printJSON(cmd.OutOrStdout(), views[0])
				}
				return printJSON(cmd.OutOrStdout(), views)
			}

			tw := newTable(cmd.OutOrStdout())
			if len(args) == 1 {
				_, _ = fmt.Fprintln(tw, "#\tCOLUMN\tTYPE")
				for i, col := range views[0].Columns {
					_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, col.Name, col.Type)
				}
				return tw.Flush()
			}
			_, _ = fmt.Fprintln(tw, "CATEGORY\tCOLUMNS")
			for _, v := range views {
				_, _ = fmt.Fprintf(tw, "%s\t%d\n", v.Category, len(v.Columns))
			}
			return tw.Flush()
		},
	}
}
