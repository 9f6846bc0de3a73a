package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/amd/internal/log"
	"github.com/zjrosen/amd/internal/watcher"
)

func startWatcher(t *testing.T, dir string, window time.Duration) (*watcher.Watcher, <-chan watcher.ChangeEvent) {
	t.Helper()

	cfg := watcher.DefaultConfig(dir)
	cfg.Window = window

	w, err := watcher.New(cfg)
	require.NoError(t, err, "failed to create watcher")
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")
	return w, onChange
}

func TestWatcher_BurstYieldsOneEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main"), 0644))

	_, onChange := startWatcher(t, dir, 400*time.Millisecond)

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("package main // %d", i)), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case ev := <-onChange:
		assert.Equal(t, watcher.KindModify, ev.Kind)
		assert.Equal(t, path, ev.Path())
	case <-time.After(time.Second):
		t.Fatal("expected change event but got timeout")
	}

	select {
	case ev := <-onChange:
		t.Fatalf("unexpected second event for %s", ev.Path())
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_RearmsAfterWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0644))

	_, onChange := startWatcher(t, dir, 100*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("b"), 0644))
	select {
	case <-onChange:
	case <-time.After(time.Second):
		t.Fatal("expected first event")
	}

	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("c"), 0644))
	select {
	case <-onChange:
	case <-time.After(time.Second):
		t.Fatal("expected event after window elapsed")
	}
}

func TestWatcher_WatchesNestedAndNewDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "pkg", "inner")
	require.NoError(t, os.MkdirAll(nested, 0755))
	existing := filepath.Join(nested, "a.go")
	require.NoError(t, os.WriteFile(existing, []byte("a"), 0644))

	_, onChange := startWatcher(t, dir, 0)

	require.NoError(t, os.WriteFile(existing, []byte("b"), 0644))
	select {
	case ev := <-onChange:
		assert.Equal(t, existing, ev.Path())
	case <-time.After(time.Second):
		t.Fatal("expected event from nested directory")
	}

	fresh := filepath.Join(dir, "fresh")
	require.NoError(t, os.Mkdir(fresh, 0755))
	time.Sleep(100 * time.Millisecond)

	created := filepath.Join(fresh, "b.go")
	require.NoError(t, os.WriteFile(created, []byte("b"), 0644))

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-onChange:
			if ev.Path() == created {
				return
			}
		case <-deadline:
			t.Fatal("expected event from directory created after start")
		}
	}
}

func TestWatcher_IgnoresFilteredPaths(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0755))
	gitFile := filepath.Join(gitDir, "index")
	swap := filepath.Join(dir, ".main.go.swp")
	require.NoError(t, os.WriteFile(gitFile, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(swap, []byte("x"), 0644))

	_, onChange := startWatcher(t, dir, 0)

	require.NoError(t, os.WriteFile(gitFile, []byte("y"), 0644))
	require.NoError(t, os.WriteFile(swap, []byte("y"), 0644))

	select {
	case ev := <-onChange:
		t.Fatalf("should not notify for %s", ev.Path())
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOwnFiles(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "debug.log")
	dbPath := filepath.Join(dir, "history.db")
	walPath := dbPath + "-wal"
	for _, p := range []string{logPath, dbPath, walPath} {
		require.NoError(t, os.WriteFile(p, nil, 0644))
	}

	cfg := watcher.DefaultConfig(dir)
	cfg.Window = 0
	cfg.IgnoreFiles = []string{logPath, dbPath, walPath}
	w, err := watcher.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	onChange, err := w.Start()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		for _, p := range []string{logPath, dbPath, walPath} {
			require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf("line %d\n", i)), 0644))
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case ev := <-onChange:
		t.Fatalf("should not notify for %s", ev.Path())
	case <-time.After(200 * time.Millisecond):
	}

	// Other files in the same directory still trigger.
	src := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(src, []byte("package main"), 0644))
	select {
	case ev := <-onChange:
		assert.Equal(t, src, ev.Path())
	case <-time.After(time.Second):
		t.Fatal("expected change event for main.go")
	}
}

func TestWatcher_DebugLogInRootDoesNotRetrigger(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "debug.log")
	cleanup, err := log.Init(logPath)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	cfg := watcher.DefaultConfig(dir)
	cfg.Window = 50 * time.Millisecond
	cfg.IgnoreFiles = []string{logPath}
	w, err := watcher.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	onChange, err := w.Start()
	require.NoError(t, err)

	log.Info(log.CatWatcher, "hello")

	select {
	case ev := <-onChange:
		t.Fatalf("log write triggered a change for %s", ev.Path())
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcher_IgnoresCreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	_, onChange := startWatcher(t, dir, 0)

	// Create an empty file without writing to it, then remove it.
	f, err := os.Create(filepath.Join(dir, "empty"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.Remove(filepath.Join(dir, "empty")))

	select {
	case ev := <-onChange:
		t.Fatalf("unexpected %s event for %s", ev.Kind, ev.Path())
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	_, err = w.Start()
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, _ := startWatcher(t, t.TempDir(), 50*time.Millisecond)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Stop(), "Stop returned error")
		assert.NoError(t, w.Stop(), "second Stop returned error")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/src")

	assert.Equal(t, "/src", cfg.Root)
	assert.Equal(t, 500*time.Millisecond, cfg.Window)
	assert.Contains(t, cfg.Ignore, "node_modules")
}
