package output

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		width    int
		expected string
	}{
		{"trailing newline trimmed", "Cargo.lock\nCargo.toml\n", 0, "Cargo.lock\nCargo.toml"},
		{"crlf", "a\r\nb\r\n", 0, "a\nb"},
		{"carriage return keeps last write", "10%\r50%\r100%\ndone\n", 0, "100%\ndone"},
		{"trailing carriage return", "working 50%\r", 0, "working 50%"},
		{"tabs", "a\tb", 0, "a    b"},
		{"hard wrap", "abcdefghij", 4, "abcd\nefgh\nij"},
		{"empty", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Render([]byte(tt.raw), tt.width))
		})
	}
}

func TestRender_WrapKeepsEscapes(t *testing.T) {
	raw := "\x1b[31m" + strings.Repeat("x", 25) + "\x1b[0m"
	out := Render([]byte(raw), 10)
	for _, line := range strings.Split(out, "\n") {
		require.LessOrEqual(t, lipgloss.Width(line), 10)
	}
	require.Contains(t, out, "\x1b[31m")
}

func numbered(n int) []byte {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return []byte(b.String())
}

func TestModel_FollowSticksToBottom(t *testing.T) {
	m := New(true)
	m.SetSize(40, 5)
	m.SetOutput("a", numbered(20))

	require.Equal(t, 15, m.YOffset())
	require.Contains(t, m.View(), "line 20")

	m.SetOutput("a", numbered(30))
	require.Equal(t, 25, m.YOffset())
}

func TestModel_NoFollowStaysAtTop(t *testing.T) {
	m := New(false)
	m.SetSize(40, 5)
	m.SetOutput("a", numbered(20))

	require.Equal(t, 0, m.YOffset())
	require.Contains(t, m.View(), "line 1")
}

func TestModel_ScrollUpStopsFollowing(t *testing.T) {
	m := New(true)
	m.SetSize(40, 5)
	m.SetOutput("a", numbered(20))

	m.ScrollUp(3)
	require.False(t, m.Follow())
	require.Equal(t, 12, m.YOffset())

	m.SetOutput("a", numbered(25))
	require.Equal(t, 12, m.YOffset(), "new output should not move a paused pane")

	m.Bottom()
	require.True(t, m.Follow())
	require.Equal(t, 20, m.YOffset())
}

func TestModel_Paging(t *testing.T) {
	m := New(false)
	m.SetSize(40, 5)
	m.SetOutput("a", numbered(20))

	m.PageDown()
	require.Equal(t, 5, m.YOffset())
	m.PageUp()
	require.Equal(t, 0, m.YOffset())

	m.ScrollDown(2)
	m.Top()
	require.Equal(t, 0, m.YOffset())
}

func TestModel_ToggleFollow(t *testing.T) {
	m := New(false)
	m.SetSize(40, 5)
	m.SetOutput("a", numbered(20))

	m.ToggleFollow()
	require.True(t, m.Follow())
	require.Equal(t, 15, m.YOffset())

	m.ToggleFollow()
	require.False(t, m.Follow())
}

func TestModel_NewExecutionResetsScroll(t *testing.T) {
	m := New(false)
	m.SetSize(40, 5)
	m.SetOutput("a", numbered(20))
	m.PageDown()

	m.SetOutput("b", numbered(3))
	require.Equal(t, 0, m.YOffset())
	require.Equal(t, len(numbered(3)), m.Len())
}

func TestModel_EmptyPlaceholder(t *testing.T) {
	m := New(true)
	m.SetSize(40, 3)
	view := m.View()
	require.Contains(t, view, "(no output yet)")
	require.Equal(t, 3, lipgloss.Height(view))
}

func TestModel_Shows(t *testing.T) {
	m := New(true)
	m.SetSize(40, 5)

	m.SetOutput("a", []byte("hello\n"))
	require.True(t, m.Shows("a", 6))
	require.False(t, m.Shows("a", 7))
	require.False(t, m.Shows("b", 6))
}
