package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1childress/ccmanager/internal/auth"
	"github.com/d1childress/ccmanager/internal/testutil"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	out, _ := testutil.NewTestHelper(t).CaptureOutput(f)
	return out
}

func withoutColor(t *testing.T) {
	t.Helper()
	prevSupport, prevNoColor := supportsColor, color.NoColor
	supportsColor, color.NoColor = false, true
	t.Cleanup(func() {
		supportsColor, color.NoColor = prevSupport, prevNoColor
	})
}

func TestColorFunc(t *testing.T) {
	prev := supportsColor
	defer func() { supportsColor = prev }()

	funcs := []func(string) string{ColorSuccess, ColorError, ColorWarning, ColorInfo, ColorProgress, ColorBold, ColorDim}

	supportsColor = true
	for _, fn := range funcs {
		assert.NotEqual(t, "text", fn("text"))
		assert.Contains(t, fn("text"), "text")
	}

	supportsColor = false
	for _, fn := range funcs {
		assert.Equal(t, "text", fn("text"))
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{1250, "1.2K"},
		{45_600, "45.6K"},
		{1_000_000, "1.0M"},
		{2_340_000, "2.3M"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCount(tt.in), "%d", tt.in)
	}
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.00", FormatCost(0))
	assert.Equal(t, "$0.0030", FormatCost(0.003))
	assert.Equal(t, "$1.25", FormatCost(1.25))
}

func TestFormatChangeKind(t *testing.T) {
	withoutColor(t)

	assert.Equal(t, "A", FormatChangeKind(models.ChangeAdded))
	assert.Equal(t, "M", FormatChangeKind(models.ChangeModified))
	assert.Equal(t, "D", FormatChangeKind(models.ChangeDeleted))
	assert.Equal(t, "R", FormatChangeKind(models.ChangeRenamed))
	assert.Equal(t, "?", FormatChangeKind(models.ChangeKind("X")))
}

func TestFormatFileChange(t *testing.T) {
	withoutColor(t)

	assert.Equal(t, "+3 -1", FormatFileChange(3, 1))
	assert.Equal(t, "+3", FormatFileChange(3, 0))
	assert.Equal(t, "0", FormatFileChange(0, 0))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}

func TestShowErrorPrintsSuggestions(t *testing.T) {
	withoutColor(t)

	tests := []struct {
		name     string
		err      error
		contains []string
		excludes []string
	}{
		{
			name:     "suggestions",
			err:      apperrors.NoLocalPath("octo/widgets"),
			contains: []string{"Repository has no local path", "ccmanager repo clone octo/widgets"},
			excludes: []string{"CCM3002", "try again"},
		},
		{
			name:     "plain error",
			err:      errors.New("plain failure"),
			contains: []string{"plain failure"},
			excludes: []string{"TIP:"},
		},
		{
			name:     "recoverable without suggestions",
			err:      apperrors.APIError("claude", 503),
			contains: []string{"API error: HTTP 503", "TIP: This is usually temporary, try again"},
		},
		{
			name:     "recoverable with suggestions",
			err:      apperrors.APIError("claude", 429),
			contains: []string{"Rate limited"},
			excludes: []string{"usually temporary"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			ShowError(&buf, tt.err)
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, buf.String(), unwanted)
			}
		})
	}
}

func TestShowHeader(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	ShowHeader(&buf, "Usage")
	assert.Contains(t, buf.String(), "┌")
	assert.Contains(t, buf.String(), "┘")
	assert.Contains(t, buf.String(), "Usage")
}

func TestMessageHelpers(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	ShowSuccess(&buf, "saved")
	ShowWarning(&buf, "careful")
	ShowInfo(&buf, "note")
	PrintKeyValue(&buf, "log_level", "debug")
	assert.Equal(t, "✓ saved\n! careful\n• note\n  log_level:           debug\n", buf.String())
}

func TestBox(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	Box(&buf, "Totals", "a: 1\nlonger line: 2")
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "┌─ Totals ────────┐", lines[0])
	assert.Equal(t, "│ a: 1            │", lines[1])
	assert.Equal(t, "│ longer line: 2  │", lines[2])
	assert.Equal(t, "└──────────────────┘", lines[3])
}

func TestRepositoryTable(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	RepositoryTable(&buf, []models.Repository{
		{ID: "1", FullName: "octo/widgets", Language: "Go", StargazersCount: 1500, LocalPath: "/src/widgets"},
		{ID: "2", FullName: "octo/secret", Private: true},
	}, "1")

	out := buf.String()
	assert.Contains(t, out, "octo/widgets")
	assert.Contains(t, out, "1.5K")
	assert.Contains(t, out, "/src/widgets")
	assert.Contains(t, out, "private")
	assert.Contains(t, out, "*")
}

func TestChangeAndCommandTables(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	ChangeTable(&buf, []models.FileChange{{Path: "main.go", Kind: models.ChangeModified}})
	assert.Contains(t, buf.String(), "main.go")

	buf.Reset()
	CommandTable(&buf, []models.AgentCommand{
		{Text: "add tests", Provider: models.ProviderClaude, Status: models.CommandCompleted, Output: "Done.\nMore detail"},
		{Text: "refactor", Provider: models.ProviderCodex, Status: models.CommandFailed, Error: "API error: HTTP 500"},
	})
	out := buf.String()
	assert.Contains(t, out, "Done.")
	assert.NotContains(t, out, "More detail")
	assert.Contains(t, out, "API error: HTTP 500")
}

func TestAuthTable(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	AuthTable(&buf, []auth.State{
		{Provider: models.ProviderGitHub, Status: auth.Authenticated, Metadata: auth.Metadata{Username: "octo"}},
		{Provider: models.ProviderClaude},
	})
	out := buf.String()
	assert.Contains(t, out, "octo")
	assert.Contains(t, out, auth.Authenticated.String())
	assert.Contains(t, out, auth.Unauthenticated.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestSpinnerWithoutTerminal(t *testing.T) {
	withoutColor(t)

	out := captureStdout(t, func() {
		s := NewSpinner("syncing")
		s.Start()
		s.UpdateMessage("still syncing")
		s.Stop(true, "synced")
		s.Stop(true, "ignored")
	})
	assert.Equal(t, "✓ synced\n", out)
}
