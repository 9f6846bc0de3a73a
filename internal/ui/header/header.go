// Package header renders the top of the amd screen: tool name and version,
// the watched directory, the run mode, and the command being rerun.
package header

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/amd/internal/cachemanager"
	"github.com/zjrosen/amd/internal/ui/styles"
)

// Resolver looks a program name up on PATH.
type Resolver interface {
	Resolve(ctx context.Context, word string) cachemanager.Resolution
}

// ArgKind classifies one word of the command line for colouring.
type ArgKind int

const (
	ArgPlain ArgKind = iota
	ArgProgram
	ArgMissing
	ArgFlag
	ArgPath
)

func (k ArgKind) String() string {
	switch k {
	case ArgProgram:
		return "program"
	case ArgMissing:
		return "missing"
	case ArgFlag:
		return "flag"
	case ArgPath:
		return "path"
	default:
		return "plain"
	}
}

// Arg is a classified command line word.
type Arg struct {
	Word string
	Kind ArgKind
}

// Info is everything the header shows.
type Info struct {
	Version   string
	Root      string
	Supersede bool
	Command   string
}

// Classify splits command on whitespace and classifies each word. The first
// word is a program when r finds it, a path when it exists under dir, and
// missing otherwise. Later words are flags, existing paths, or plain.
func Classify(ctx context.Context, r Resolver, dir, command string) []Arg {
	words := strings.Fields(command)
	args := make([]Arg, 0, len(words))
	for i, w := range words {
		args = append(args, Arg{Word: w, Kind: classify(ctx, r, dir, w, i == 0)})
	}
	return args
}

func classify(ctx context.Context, r Resolver, dir, word string, first bool) ArgKind {
	if first {
		if r != nil && r.Resolve(ctx, word).Found {
			return ArgProgram
		}
		if exists(dir, word) {
			return ArgPath
		}
		return ArgMissing
	}
	if strings.HasPrefix(word, "-") {
		return ArgFlag
	}
	if exists(dir, word) {
		return ArgPath
	}
	return ArgPlain
}

func exists(dir, word string) bool {
	path := word
	if dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// RenderCommand joins args with their styles applied.
func RenderCommand(args []Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = styleFor(a.Kind).Render(a.Word)
	}
	return strings.Join(parts, " ")
}

func styleFor(k ArgKind) lipgloss.Style {
	switch k {
	case ArgProgram:
		return styles.ArgProgramStyle
	case ArgMissing:
		return styles.ArgMissingStyle
	case ArgFlag:
		return styles.ArgFlagStyle
	case ArgPath:
		return styles.ArgPathStyle
	default:
		return styles.ArgPlainStyle
	}
}

// Render draws the header for the given width. args is the classified
// command; the caller classifies once since that touches PATH and the disk.
func Render(info Info, args []Arg, width int) string {
	mode := "serial"
	if info.Supersede {
		mode = "supersede"
	}

	sep := styles.MutedStyle.Render(" · ")
	title := styles.TitleStyle.Render("amd") + " " + styles.MutedStyle.Render(info.Version)
	line := title + sep +
		styles.LabelStyle.Render("watching ") + styles.ArgPathStyle.Render(info.Root) + sep +
		styles.LabelStyle.Render(mode)

	cmd := styles.MutedStyle.Render("$ ") + RenderCommand(args)
	if width > 0 {
		line = styles.TruncateString(line, width)
		cmd = wordwrap.String(cmd, width)
	}
	return line + "\n" + cmd
}
