package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/zjrosen/amd/internal/history"
	"github.com/zjrosen/amd/internal/ui/markdown"
)

const defaultReportWidth = 100

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently recorded runs",
	Long: `Show the runs amd recorded in its history database, newest first.

Only run metadata is stored: trigger, command, status, timings and the
number of output bytes. Output itself is never recorded.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show (0 for all)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if configErr != nil {
		return configErr
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history.path is not configured")
	}

	store, err := history.Open(cfg.History.Path, 0)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out, err := renderRuns(runs, time.Now(), reportWidth(), !isTerminal() || os.Getenv("NO_COLOR") != "")
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

func renderRuns(runs []history.Run, now time.Time, width int, plain bool) (string, error) {
	r, err := markdown.New(width, plain)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	return r.Render(history.Table(runs, now))
}

func isTerminal() bool {
	return term.IsTerminal(os.Stdout.Fd())
}

func reportWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return defaultReportWidth
}
