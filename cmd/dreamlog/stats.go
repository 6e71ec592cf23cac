package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dreamlog/dreamlog/internal/services"
)

const topSigns = 5

type journalStats struct {
	Dreams      int
	FirstDate   string
	LastDate    string
	Signs       int
	Occurrences int64
	Unsigned    int
	Top         []services.DreamsignCount
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			journal, closeJournal, err := openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer closeJournal()

			var (
				dreams []services.Dream
				counts []services.DreamsignCount
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				var err error
				dreams, err = journal.Journal(ctx)
				return err
			})
			g.Go(func() error {
				var err error
				counts, err = journal.Dreamsigns(ctx, 0)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			outputStats(cmd, summarize(dreams, counts))
			return nil
		},
	}
}

// summarize expects dreams newest first and counts most frequent first.
func summarize(dreams []services.Dream, counts []services.DreamsignCount) journalStats {
	stats := journalStats{
		Dreams: len(dreams),
		Signs:  len(counts),
	}
	if len(dreams) > 0 {
		stats.LastDate = dreams[0].Date
		stats.FirstDate = dreams[len(dreams)-1].Date
	}
	for _, dream := range dreams {
		if len(dream.Dreamsigns) == 0 {
			stats.Unsigned++
		}
	}
	for _, c := range counts {
		stats.Occurrences += c.Count
	}
	stats.Top = counts[:min(topSigns, len(counts))]
	return stats
}

func outputStats(cmd *cobra.Command, stats journalStats) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	t.AppendRow(table.Row{"Dreams", stats.Dreams})
	if stats.Dreams > 0 {
		t.AppendRow(table.Row{"First", stats.FirstDate})
		t.AppendRow(table.Row{"Latest", stats.LastDate})
	}
	t.AppendRow(table.Row{"Without dreamsigns", stats.Unsigned})
	t.AppendRow(table.Row{"Distinct dreamsigns", stats.Signs})
	t.AppendRow(table.Row{"Dreamsign occurrences", stats.Occurrences})
	t.Render()

	if len(stats.Top) == 0 {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "Most frequent dreamsigns")
	outputCounts(cmd, stats.Top)
}
