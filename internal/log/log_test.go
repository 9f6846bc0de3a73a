package log

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat_FieldsAndOrphanKey(t *testing.T) {
	ts := time.Date(2025, 12, 6, 10, 45, 0, 0, time.UTC)

	entry := Format(ts, LevelError, CatSupervisor, "spawn failed", "pid", 12, "orphan")

	require.Equal(t, "2025-12-06T10:45:00 [ERROR] [supervisor] spawn failed pid=12 orphan=<missing>\n", entry)
}

func TestInitWriter_RespectsLevelAndEnabled(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	SetMinLevel(LevelInfo)
	Debug(CatWatcher, "dropped")
	Info(CatWatcher, "kept", "path", "a.go")

	SetEnabled(false)
	Error(CatWatcher, "also dropped")
	require.False(t, Enabled())

	out := buf.String()
	require.NotContains(t, out, "dropped")
	require.Contains(t, out, "[INFO] [watcher] kept path=a.go")
}

func TestErrorErr_NilError(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	ErrorErr(CatHistory, "record", nil)
	require.Contains(t, buf.String(), "error=<nil>")
}

func TestInit_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	cleanup, err := Init(path)
	require.NoError(t, err)

	Warn(CatConfig, "no config file")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "[WARN] [config] no config file"))

	// After cleanup logging is a no-op.
	Warn(CatConfig, "after cleanup")
	require.False(t, Enabled())
}

func TestInit_BadPath(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	require.Error(t, err)
}

func TestSubscribe_ReceivesEntries(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := Subscribe(ctx)
	require.NotNil(t, ch)

	Info(CatUI, "hello")

	select {
	case ev := <-ch:
		require.Contains(t, ev.Payload, "hello")
	case <-time.After(time.Second):
		require.Fail(t, "no log event")
	}
}

func TestSubscribe_Uninitialized(t *testing.T) {
	require.Nil(t, Subscribe(context.Background()))
}

func TestNewListener_DeliversEntries(t *testing.T) {
	cleanup := InitWriter(&bytes.Buffer{})
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewListener(ctx)
	require.NotNil(t, l)

	Debug(CatWatcher, "burst", "events", 3)

	msg := l.Listen()()
	ev, ok := msg.(LogEvent)
	require.True(t, ok)
	require.Contains(t, ev.Payload, "[DEBUG] [watcher] burst events=3")
}

func TestNewListener_Uninitialized(t *testing.T) {
	l := NewListener(context.Background())
	require.Nil(t, l)
	require.Nil(t, l.Listen())
}
