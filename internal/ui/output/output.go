// Package output is the scrollable pane showing a child's captured output.
package output

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/amd/internal/ui/styles"
)

// Model is the output pane state.
type Model struct {
	viewport viewport.Model
	follow   bool

	id     string
	raw    []byte
	width  int
	height int
}

// New creates an empty pane. With follow set the pane sticks to the bottom
// as output grows.
func New(follow bool) Model {
	return Model{
		viewport: viewport.New(0, 0),
		follow:   follow,
	}
}

// SetSize resizes the pane and re-wraps its content.
func (m *Model) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	m.width, m.height = width, height
	m.viewport.Width = width
	m.viewport.Height = height
	m.refresh()
}

// SetOutput shows raw as the output of execution id. It is a no-op when
// nothing changed since the last call.
func (m *Model) SetOutput(id string, raw []byte) {
	if m.Shows(id, len(raw)) {
		return
	}
	if id != m.id {
		m.viewport.GotoTop()
	}
	m.id = id
	m.raw = raw
	m.refresh()
}

// Shows reports whether the pane already holds n bytes of output id.
func (m Model) Shows(id string, n int) bool {
	return id == m.id && n == len(m.raw)
}

// Len is the number of bytes currently shown.
func (m Model) Len() int { return len(m.raw) }

// Follow reports whether the pane sticks to the bottom.
func (m Model) Follow() bool { return m.follow }

// ToggleFollow flips follow mode; turning it on jumps to the bottom.
func (m *Model) ToggleFollow() {
	m.follow = !m.follow
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// ScrollUp scrolls up n lines and stops following.
func (m *Model) ScrollUp(n int) {
	m.follow = false
	m.viewport.ScrollUp(n)
}

// ScrollDown scrolls down n lines.
func (m *Model) ScrollDown(n int) {
	m.viewport.ScrollDown(n)
}

// PageUp scrolls up one screen.
func (m *Model) PageUp() { m.ScrollUp(m.viewport.Height) }

// PageDown scrolls down one screen.
func (m *Model) PageDown() { m.ScrollDown(m.viewport.Height) }

// Top jumps to the first line and stops following.
func (m *Model) Top() {
	m.follow = false
	m.viewport.GotoTop()
}

// Bottom jumps to the last line and resumes following.
func (m *Model) Bottom() {
	m.follow = true
	m.viewport.GotoBottom()
}

// YOffset is the index of the first visible line.
func (m Model) YOffset() int { return m.viewport.YOffset }

// View renders the pane.
func (m Model) View() string {
	if len(m.raw) == 0 {
		return styles.MutedStyle.Render("(no output yet)") + strings.Repeat("\n", max(m.height-1, 0))
	}
	return m.viewport.View()
}

func (m *Model) refresh() {
	m.viewport.SetContent(Render(m.raw, m.width))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// Render prepares raw child output for display. CRLF becomes LF, a carriage
// return keeps only what was written after it (progress bars), tabs expand
// to four spaces, and lines are hard-wrapped to width with escape sequences
// kept intact. A width of zero disables wrapping.
func Render(raw []byte, width int) string {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	text = strings.ReplaceAll(text, "\t", "    ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if j := strings.LastIndexByte(line, '\r'); j >= 0 {
			line = line[j+1:]
		}
		if width > 0 {
			line = ansi.Hardwrap(line, width, true)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
