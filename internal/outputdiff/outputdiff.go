// Package outputdiff compares the output of two runs line by line.
package outputdiff

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Timeout bounds a single comparison. Output of long-running commands can
// be large; a truncated diff is acceptable.
const Timeout = 100 * time.Millisecond

// Summary counts changed lines relative to the previous run.
type Summary struct {
	Added   int
	Removed int
}

// Unchanged reports whether no lines differ.
func (s Summary) Unchanged() bool {
	return s.Added == 0 && s.Removed == 0
}

func (s Summary) String() string {
	if s.Unchanged() {
		return "no change"
	}
	return fmt.Sprintf("+%d -%d", s.Added, s.Removed)
}

// Compare diffs prev against cur line-wise. ANSI escape sequences are
// stripped first so colour-only differences do not count.
func Compare(prev, cur []byte) Summary {
	oldText := ansi.Strip(string(prev))
	newText := ansi.Strip(string(cur))
	if oldText == newText {
		return Summary{}
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = Timeout

	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var s Summary
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.Added += n
		case diffmatchpatch.DiffDelete:
			s.Removed += n
		}
	}
	return s
}

// countLines counts lines in text, including a final unterminated one.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
