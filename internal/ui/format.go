// Package ui renders command output for the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

var (
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ShowHeader displays a formatted header
func ShowHeader(w io.Writer, title string) {
	width := 50
	padding := (width - len(title) - 2) / 2
	if padding < 0 {
		padding = 0
	}
	right := width - 2 - padding - len(title)
	if right < 0 {
		right = 0
	}

	fmt.Fprintln(w, "\n┌"+strings.Repeat("─", width-2)+"┐")
	fmt.Fprintf(w, "│%s%s%s│\n", strings.Repeat(" ", padding), ColorBold(title), strings.Repeat(" ", right))
	fmt.Fprintln(w, "└"+strings.Repeat("─", width-2)+"┘")
}

// ShowError displays an error message and its recovery suggestions.
// Errors without suggestions that are safe to retry get a generic hint.
func ShowError(w io.Writer, err error) {
	fmt.Fprintf(w, "\n%s %s\n", ColorError("✗"), ColorError(apperrors.Describe(err)))

	var appErr *apperrors.AppError
	if !apperrors.As(err, &appErr) {
		return
	}
	if appErr.Cause != nil {
		fmt.Fprintf(w, "  %s\n", ColorDim(appErr.Cause.Error()))
	}
	for _, s := range appErr.Suggestions {
		fmt.Fprintf(w, "  %s %s\n", ColorInfo("TIP:"), s)
	}
	if len(appErr.Suggestions) == 0 && apperrors.IsRecoverable(err) {
		fmt.Fprintf(w, "  %s %s\n", ColorInfo("TIP:"), "This is usually temporary, try again")
	}
}

// ShowSuccess displays a success message
func ShowSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ColorSuccess("✓"), message)
}

// ShowWarning displays a warning message
func ShowWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ColorWarning("!"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ColorInfo("•"), message)
}

// PrintKeyValue prints an aligned key/value pair
func PrintKeyValue(w io.Writer, key, value string) {
	fmt.Fprintf(w, "  %-20s %s\n", ColorDim(key+":"), value)
}

// FormatCount abbreviates large counts: 1.2M, 3.4K, 999
func FormatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatCost renders a dollar amount; sub-cent amounts keep four decimals
func FormatCost(cost float64) string {
	if cost > 0 && cost < 0.01 {
		return fmt.Sprintf("$%.4f", cost)
	}
	return fmt.Sprintf("$%.2f", cost)
}

// FormatChangeKind renders a change kind as a colored status letter
func FormatChangeKind(kind models.ChangeKind) string {
	switch kind {
	case models.ChangeAdded:
		return ColorSuccess("A")
	case models.ChangeModified:
		return ColorWarning("M")
	case models.ChangeDeleted:
		return ColorError("D")
	case models.ChangeRenamed:
		return ColorInfo("R")
	default:
		return "?"
	}
}

// FormatFileChange formats file change statistics
func FormatFileChange(additions, deletions int) string {
	result := ""
	if additions > 0 {
		result += ColorSuccess(fmt.Sprintf("+%d", additions))
	}
	if additions > 0 && deletions > 0 {
		result += " "
	}
	if deletions > 0 {
		result += ColorError(fmt.Sprintf("-%d", deletions))
	}
	if result == "" {
		result = ColorDim("0")
	}
	return result
}

// FormatCommandStatus colors a command status
func FormatCommandStatus(status models.CommandStatus) string {
	switch status {
	case models.CommandCompleted:
		return ColorSuccess(string(status))
	case models.CommandFailed:
		return ColorError(string(status))
	case models.CommandRunning:
		return ColorProgress(string(status))
	default:
		return ColorDim(string(status))
	}
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// Box draws a box around content
func Box(w io.Writer, title, content string) {
	lines := strings.Split(content, "\n")
	maxLen := len(title)
	for _, line := range lines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}

	fmt.Fprintf(w, "┌─ %s %s┐\n", ColorBold(title), strings.Repeat("─", maxLen-len(title)))
	for _, line := range lines {
		fmt.Fprintf(w, "│ %s%s  │\n", line, strings.Repeat(" ", maxLen-len(line)))
	}
	fmt.Fprintf(w, "└%s┘\n", strings.Repeat("─", maxLen+4))
}
