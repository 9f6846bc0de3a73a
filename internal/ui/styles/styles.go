// Package styles contains Lip Gloss style definitions.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	// Semantic color names - Text hierarchy
	TextPrimaryColor   = lipgloss.AdaptiveColor{Light: "#2D3436", Dark: "#CCCCCC"}
	TextSecondaryColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BBBBBB"}
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"} // Hints, help text, footers

	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}

	// Semantic color names - Status
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#D68910", Dark: "#FECA57"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	StatusRunningColor = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#54A0FF"}

	// Command line argument colors
	ArgProgramColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"} // green
	ArgPathColor    = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#94E2D5"} // cyan
	ArgMissingColor = lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#F38BA8"} // red
	ArgFlagColor    = lipgloss.AdaptiveColor{Light: "#E64553", Dark: "#EBA0AC"} // light red

	DiffAddedColor   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	DiffRemovedColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}

	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(TextPrimaryColor)
	MutedStyle   = lipgloss.NewStyle().Foreground(TextMutedColor)
	LabelStyle   = lipgloss.NewStyle().Foreground(TextSecondaryColor)
	DividerStyle = lipgloss.NewStyle().Foreground(BorderDefaultColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(StatusErrorColor).Bold(true)

	ArgProgramStyle = lipgloss.NewStyle().Foreground(ArgProgramColor).Bold(true)
	ArgPathStyle    = lipgloss.NewStyle().Foreground(ArgPathColor)
	ArgMissingStyle = lipgloss.NewStyle().Foreground(ArgMissingColor).Bold(true)
	ArgFlagStyle    = lipgloss.NewStyle().Foreground(ArgFlagColor)
	ArgPlainStyle   = lipgloss.NewStyle().Foreground(TextPrimaryColor)

	StatusRunningStyle   = lipgloss.NewStyle().Foreground(StatusRunningColor).Bold(true)
	StatusSucceededStyle = lipgloss.NewStyle().Foreground(StatusSuccessColor).Bold(true)
	StatusFailedStyle    = lipgloss.NewStyle().Foreground(StatusErrorColor).Bold(true)
	StatusCancelledStyle = lipgloss.NewStyle().Foreground(StatusWarningColor).Bold(true)

	DiffAddedStyle   = lipgloss.NewStyle().Foreground(DiffAddedColor)
	DiffRemovedStyle = lipgloss.NewStyle().Foreground(DiffRemovedColor)
)

// ApplyColorProfile switches lipgloss to plain ASCII output when noColor is set.
func ApplyColorProfile(noColor bool) {
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
