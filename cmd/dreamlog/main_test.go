package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamlog/dreamlog/internal/services"
	"github.com/dreamlog/dreamlog/internal/usecase"
)

func setupCLI(t *testing.T) {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("DREAMLOG_DIR", tmp)
	t.Setenv("DREAMLOG_CONFIG", filepath.Join(tmp, "missing.yaml"))
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(stdin)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out, _, err := execute(t, strings.NewReader(stdin), args...)
	return out, err
}

// countingReader records whether a command consumed its input.
type countingReader struct {
	reads int
}

func (r *countingReader) Read([]byte) (int, error) {
	r.reads++
	return 0, io.EOF
}

func mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, stdin, args...)
	require.NoError(t, err, "dreamlog %s", strings.Join(args, " "))
	return out
}

func TestJournalCommands(t *testing.T) {
	setupCLI(t)

	id := strings.TrimSpace(mustRun(t, "", "add", "--date", "2024-01-02", "--title", "tidal wave",
		"--description", "the sea stood up", "--signs", "water, wave"))
	require.NotEmpty(t, id)
	mustRun(t, "", "add", "--date", "2024-01-05", "--title", "exam", "--description", "forgot everything", "-s", "school,water")

	var dreams []services.Dream
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "list", "--format", "json")), &dreams))
	require.Len(t, dreams, 2)
	assert.Equal(t, "exam", dreams[0].Title)
	assert.Equal(t, "tidal wave", dreams[1].Title)

	var shown services.Dream
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "show", id[:8], "--format", "json")), &shown))
	assert.Equal(t, id, shown.ID)
	assert.Equal(t, []string{"water", "wave"}, shown.Dreamsigns)

	assert.Contains(t, mustRun(t, "", "edit", id, "--title", "tsunami"), "Dream updated")

	var counts []services.DreamsignCount
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "signs", "--format", "json", "--limit", "1")), &counts))
	assert.Equal(t, []services.DreamsignCount{{Dreamsign: "water", Count: 2}}, counts)

	assert.Equal(t, "water\nwave\n", mustRun(t, "", "suggest", "wa"))

	stats := mustRun(t, "", "stats")
	assert.Contains(t, stats, "Distinct dreamsigns")
	assert.Contains(t, stats, "water")

	assert.Contains(t, mustRun(t, "n\n", "delete", id), "Deletion cancelled")
	assert.Contains(t, mustRun(t, "", "delete", id, "--force"), "Deleted dream")

	_, err := run(t, "", "show", id)
	require.ErrorIs(t, err, services.ErrNotFound)
}

func TestAddReadsDescriptionFromStdin(t *testing.T) {
	setupCLI(t)

	id := strings.TrimSpace(mustRun(t, "falling through clouds\n", "add", "--title", "sky"))

	var shown services.Dream
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "show", id, "--format", "json")), &shown))
	assert.Equal(t, "falling through clouds", shown.Description)
	assert.Len(t, shown.Date, len("2006-01-02"))
}

func TestAddRequiresTitle(t *testing.T) {
	setupCLI(t)

	_, err := run(t, "", "add", "--description", "no title")
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestAddChecksTitleBeforeReadingDescription(t *testing.T) {
	setupCLI(t)

	stdin := &countingReader{}
	_, _, err := execute(t, stdin, "add")
	require.ErrorIs(t, err, services.ErrValidation)
	require.ErrorIs(t, err, usecase.ErrIncomplete)
	assert.Zero(t, stdin.reads)
}

func TestFailureIsReportedOnceOnStderr(t *testing.T) {
	setupCLI(t)

	_, stderr, err := execute(t, strings.NewReader(""), "add", "--date", "someday", "--title", "t", "--description", "d")
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Equal(t, 1, strings.Count(stderr, "validation failed"), stderr)
	assert.NotContains(t, stderr, `"level":"error"`)

	data, err := os.ReadFile(filepath.Join(os.Getenv("DREAMLOG_DIR"), "dreamlog.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"op":"create"`)
	assert.Contains(t, string(data), `"kind":"validation failed"`)
}

func TestListRejectsUnknownFormat(t *testing.T) {
	setupCLI(t)

	_, err := run(t, "", "list", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestWrapString(t *testing.T) {
	assert.Equal(t, "short", wrapString("  short ", 10))
	assert.Equal(t, "abcd\nefgh\nij", wrapString("abcdefghij", 4))
	assert.Equal(t, "夢夢\n夢", wrapString("夢夢夢", 4))
	assert.Equal(t, "ab\ncd\nef", wrapText("abcd\nef", 2))
}

func TestCalculateColumnWidths(t *testing.T) {
	dreams := []services.Dream{{Title: "a fairly long dream title"}}

	wide := calculateColumnWidths(200, dreams)
	assert.False(t, wide.shortID)
	assert.Equal(t, 25, wide.title)
	assert.Equal(t, 36, wide.id)

	narrow := calculateColumnWidths(80, dreams)
	assert.True(t, narrow.shortID)
	assert.Equal(t, 8, narrow.id)
	assert.GreaterOrEqual(t, narrow.dreamsigns, 15)
}

func TestSummarize(t *testing.T) {
	dreams := []services.Dream{
		{Date: "2024-03-01", Dreamsigns: []string{"teeth"}},
		{Date: "2024-02-01", Dreamsigns: []string{}},
		{Date: "2024-01-01", Dreamsigns: []string{"teeth", "water"}},
	}
	counts := []services.DreamsignCount{{Dreamsign: "teeth", Count: 2}, {Dreamsign: "water", Count: 1}}

	stats := summarize(dreams, counts)
	assert.Equal(t, 3, stats.Dreams)
	assert.Equal(t, "2024-01-01", stats.FirstDate)
	assert.Equal(t, "2024-03-01", stats.LastDate)
	assert.Equal(t, 1, stats.Unsigned)
	assert.Equal(t, 2, stats.Signs)
	assert.Equal(t, int64(3), stats.Occurrences)
	assert.Equal(t, counts, stats.Top)

	empty := summarize(nil, nil)
	assert.Zero(t, empty.Dreams)
	assert.Empty(t, empty.Top)
}

func TestEditableRoundTrip(t *testing.T) {
	dream := &services.Dream{
		Date:        "2024-01-02",
		Title:       "title: with colon",
		Description: "line one\nline two",
		Dreamsigns:  []string{"a", "b"},
	}

	content, err := marshalEditable(dream)
	require.NoError(t, err)

	edited, err := unmarshalEditable(content)
	require.NoError(t, err)
	assert.Equal(t, editableDream{
		Date:        dream.Date,
		Title:       dream.Title,
		Dreamsigns:  dream.Dreamsigns,
		Description: dream.Description,
	}, edited)

	edited, err = unmarshalEditable([]byte("title: x\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{}, edited.Dreamsigns)

	_, err = unmarshalEditable([]byte("title: [unclosed"))
	require.Error(t, err)
}
