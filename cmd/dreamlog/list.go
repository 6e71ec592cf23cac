package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dreamlog/dreamlog/internal/services"
)

func newListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dreams, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			journal, closeJournal, err := openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer closeJournal()

			dreams, err := journal.Journal(cmd.Context())
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return outputJSON(cmd, dreams)
			case "table":
				outputTable(cmd, dreams, getTerminalWidth())
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func outputJSON(cmd *cobra.Command, dreams []services.Dream) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(dreams)
}

func getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// wrapString wraps a string to fit within maxWidth, accounting for multi-byte characters
func wrapString(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return s
	}

	s = strings.TrimSpace(s)
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}

	var result strings.Builder
	var currentLine strings.Builder
	currentWidth := 0

	for _, r := range s {
		charWidth := runewidth.RuneWidth(r)

		if currentWidth+charWidth > maxWidth && currentWidth > 0 {
			result.WriteString(currentLine.String())
			result.WriteString("\n")
			currentLine.Reset()
			currentWidth = 0
		}

		currentLine.WriteRune(r)
		currentWidth += charWidth
	}

	if currentLine.Len() > 0 {
		result.WriteString(currentLine.String())
	}

	return result.String()
}

// wrapText wraps every line of a multi-line text.
func wrapText(s string, maxWidth int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = wrapString(line, maxWidth)
	}
	return strings.Join(lines, "\n")
}

// columnWidths holds the calculated widths for each column
type columnWidths struct {
	date       int
	title      int
	dreamsigns int
	id         int
	shortID    bool
}

// calculateColumnWidths determines column widths based on terminal width and data
func calculateColumnWidths(termWidth int, dreams []services.Dream) columnWidths {
	const numColumns = 4

	// Reserve space for table borders and padding (roughly 3 chars per column)
	availableWidth := termWidth - numColumns*3

	maxTitleWidth := 0
	for _, dream := range dreams {
		if w := runewidth.StringWidth(dream.Title); w > maxTitleWidth {
			maxTitleWidth = w
		}
	}
	titleWidth := min(max(maxTitleWidth, 10), 40)

	dateWidth := 10 // "2006-01-02"
	idWidth := 36
	signsWidth := availableWidth - dateWidth - idWidth - titleWidth

	// Fall back to the short id when the dreamsigns column gets too narrow
	shortID := false
	if signsWidth < 20 {
		shortID = true
		idWidth = 8
		signsWidth = availableWidth - dateWidth - idWidth - titleWidth
	}
	if signsWidth < 15 {
		signsWidth = 15
	}

	return columnWidths{
		date:       dateWidth,
		title:      titleWidth,
		dreamsigns: signsWidth,
		id:         idWidth,
		shortID:    shortID,
	}
}

func outputTable(cmd *cobra.Command, dreams []services.Dream, termWidth int) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	widths := calculateColumnWidths(termWidth, dreams)

	// Content is wrapped and truncated here; go-pretty's WidthMax miscounts
	// multi-byte characters.
	t.AppendHeader(table.Row{"Date", "Title", "Dreamsigns", "ID"})
	for _, dream := range dreams {
		id := dream.ID
		if widths.shortID {
			id = runewidth.Truncate(id, widths.id, "")
		}

		t.AppendRow(table.Row{
			dream.Date,
			wrapString(dream.Title, widths.title),
			runewidth.Truncate(strings.Join(dream.Dreamsigns, ", "), widths.dreamsigns, "..."),
			id,
		})
	}

	t.Render()
}
