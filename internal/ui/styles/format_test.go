package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		width    int
		expected string
	}{
		{"fits", "cargo test", 20, "cargo test"},
		{"exact", "cargo", 5, "cargo"},
		{"ellipsis", "cargo test --all", 10, "cargo t..."},
		{"tiny width", "cargo", 2, "ca"},
		{"zero width", "cargo", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, TruncateString(tt.s, tt.width))
		})
	}
}

func TestTruncateString_KeepsWidthWithEscapes(t *testing.T) {
	styled := ArgProgramStyle.Render("cargo") + " " + ArgFlagStyle.Render("--release")
	got := TruncateString(styled, 8)
	require.LessOrEqual(t, lipgloss.Width(got), 8)
}
