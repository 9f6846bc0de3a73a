package history

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTable_Empty(t *testing.T) {
	require.Equal(t, "_No runs recorded yet._\n", Table(nil, time.Now()))
}

func TestTable_Rows(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	runs := []Run{
		{
			Trigger: "modify", Path: "src/main.rs", Command: "cargo test", Status: "failed (exit 101)",
			OutputBytes: 2048, StartedAt: now.Add(-3 * time.Minute), FinishedAt: now.Add(-3*time.Minute + 1500*time.Millisecond),
		},
		{
			Trigger: "start", Command: "somebscommand | tee log", Status: "spawn failed",
			SpawnError: "somebscommand: command not found", StartedAt: now.Add(-time.Hour), FinishedAt: now.Add(-time.Hour),
		},
	}

	out := Table(runs, now)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "| 3 minutes ago | modify src/main.rs | `cargo test` | failed (exit 101) | 1.5s | 2.0 kB |", lines[2])
	require.Contains(t, lines[3], "spawn failed: somebscommand: command not found")
	require.Contains(t, lines[3], "1 hour ago")
	require.Contains(t, lines[3], "`somebscommand \\| tee log`")
}
