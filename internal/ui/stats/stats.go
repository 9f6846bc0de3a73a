// Package stats renders the one-line summary of the execution on screen.
package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/zjrosen/amd/internal/outputdiff"
	"github.com/zjrosen/amd/internal/supervisor"
	"github.com/zjrosen/amd/internal/ui/styles"
)

// Line is a snapshot of what the stats line shows.
type Line struct {
	PID     int
	Elapsed time.Duration
	Bytes   int
	Trigger supervisor.Trigger
	Status  supervisor.Status
	Diff    *outputdiff.Summary
}

// FromExecution captures ex at now. diff may be nil.
func FromExecution(ex *supervisor.Execution, diff *outputdiff.Summary, now time.Time) Line {
	return Line{
		PID:     ex.PID(),
		Elapsed: ex.Elapsed(now),
		Bytes:   ex.Buffer().Len(),
		Trigger: ex.Trigger(),
		Status:  ex.Status(),
		Diff:    diff,
	}
}

// StatusStyle returns the style for a status.
func StatusStyle(s supervisor.Status) lipgloss.Style {
	switch s.Kind {
	case supervisor.StatusRunning:
		return styles.StatusRunningStyle
	case supervisor.StatusSucceeded:
		return styles.StatusSucceededStyle
	case supervisor.StatusCancelled:
		return styles.StatusCancelledStyle
	default:
		return styles.StatusFailedStyle
	}
}

// FormatElapsed rounds d for display: milliseconds under a second, tenths
// of a second under a minute, whole seconds above.
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// Render draws l truncated to width. A width of zero disables truncation.
func Render(l Line, width int) string {
	sep := styles.MutedStyle.Render(" · ")

	pid := "-"
	if l.PID > 0 {
		pid = fmt.Sprintf("%d", l.PID)
	}

	parts := []string{
		StatusStyle(l.Status).Render(l.Status.String()),
		styles.LabelStyle.Render("pid ") + pid,
		FormatElapsed(l.Elapsed),
		humanize.Bytes(uint64(l.Bytes)), //nolint:gosec // G115: Len is never negative
		styles.LabelStyle.Render("trigger ") + supervisor.Describe(l.Trigger),
	}
	if l.Diff != nil {
		parts = append(parts, renderDiff(*l.Diff))
	}

	out := strings.Join(parts, sep)
	if width > 0 {
		out = styles.TruncateString(out, width)
	}
	return out
}

func renderDiff(d outputdiff.Summary) string {
	if d.Unchanged() {
		return styles.MutedStyle.Render(d.String())
	}
	return styles.DiffAddedStyle.Render(fmt.Sprintf("+%d", d.Added)) + " " +
		styles.DiffRemovedStyle.Render(fmt.Sprintf("-%d", d.Removed))
}
