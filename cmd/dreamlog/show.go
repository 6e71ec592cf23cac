package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dreamlog/dreamlog/internal/services"
)

func newShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a dream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, closeJournal, err := openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer closeJournal()

			id, err := journal.ResolveID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			dream, err := journal.Show(cmd.Context(), id)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(dream)
			case "text":
				outputDream(cmd, dream)
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: text, json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}

func outputDream(cmd *cobra.Command, dream *services.Dream) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	width := getTerminalWidth() - 20
	t.AppendRow(table.Row{"ID", dream.ID})
	t.AppendRow(table.Row{"Revision", dream.Rev})
	t.AppendRow(table.Row{"Date", dream.Date})
	t.AppendRow(table.Row{"Created", dream.Created})
	t.AppendRow(table.Row{"Title", wrapString(dream.Title, width)})
	t.AppendRow(table.Row{"Dreamsigns", wrapString(strings.Join(dream.Dreamsigns, ", "), width)})
	t.AppendRow(table.Row{"Description", wrapText(dream.Description, width)})

	t.Render()
}
