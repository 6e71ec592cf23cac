package main

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dreamlog/dreamlog/internal/services"
)

func newSignsCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "signs",
		Short: "Show dreamsigns by how often they occur",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = settings.DefaultLimit
			}

			journal, closeJournal, err := openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer closeJournal()

			counts, err := journal.Dreamsigns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(counts)
			case "table":
				outputCounts(cmd, counts)
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most frequent dreamsigns (0: all)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func outputCounts(cmd *cobra.Command, counts []services.DreamsignCount) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Dreamsign", "Count"})
	for _, c := range counts {
		t.AppendRow(table.Row{c.Dreamsign, c.Count})
	}

	t.Render()
}
