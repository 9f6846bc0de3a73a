package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Table renders runs as a markdown table. Start times are relative to now.
func Table(runs []Run, now time.Time) string {
	if len(runs) == 0 {
		return "_No runs recorded yet._\n"
	}

	var b strings.Builder
	b.WriteString("| started | trigger | command | status | duration | output |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range runs {
		trigger := r.Trigger
		if r.Path != "" {
			trigger += " " + r.Path
		}
		status := r.Status
		if r.SpawnError != "" {
			status += ": " + r.SpawnError
		}
		fmt.Fprintf(&b, "| %s | %s | `%s` | %s | %s | %s |\n",
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			cell(trigger),
			cell(strings.ReplaceAll(r.Command, "`", "'")),
			cell(status),
			r.Duration().Round(time.Millisecond),
			humanize.Bytes(uint64(max(r.OutputBytes, 0))),
		)
	}
	return b.String()
}

func cell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
