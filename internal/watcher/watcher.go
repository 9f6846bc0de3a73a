// Package watcher turns filesystem notifications under a directory tree into
// rate-limited change events.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/amd/internal/log"
)

// Watcher monitors a directory tree and emits at most one change event per
// debounce window.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	match     matcher
	limiter   *RateLimiter
	clock     Clock
	onChange  chan ChangeEvent
	errs      chan error
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// Config holds watcher configuration options.
type Config struct {
	Root   string
	Window time.Duration
	Ignore []string
	// IgnoreFiles are paths of files amd itself writes, such as the debug
	// log and the history database. Writes to them never trigger a run.
	IgnoreFiles []string
	Clock       Clock
}

// DefaultConfig returns the defaults for watching root.
func DefaultConfig(root string) Config {
	return Config{
		Root:   root,
		Window: 500 * time.Millisecond,
		Ignore: DefaultIgnore,
	}
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root %s: %w", cfg.Root, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}

	return &Watcher{
		fsWatcher: fsw,
		root:      root,
		match:     newMatcher(root, cfg.Ignore, cfg.IgnoreFiles),
		limiter:   NewRateLimiter(cfg.Window),
		clock:     clock,
		onChange:  make(chan ChangeEvent, 1),
		errs:      make(chan error, 1),
		done:      make(chan struct{}),
	}, nil
}

// Root returns the absolute watch root.
func (w *Watcher) Root() string { return w.root }

// Start adds a watch on every directory under the root and begins delivering
// change events. A root that cannot be watched is an error.
func (w *Watcher) Start() (<-chan ChangeEvent, error) {
	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watching %s: not a directory", w.root)
	}

	if err := w.addTree(w.root); err != nil {
		return nil, err
	}

	log.Info(log.CatWatcher, "Watching", "root", w.root, "window", w.limiter.Window)

	w.wg.Add(1)
	go w.loop()

	return w.onChange, nil
}

// Errors delivers backend failures wrapped in ErrWatchBackend.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Stop terminates the watcher and releases resources. Safe to call more
// than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			// A subdirectory vanished or is unreadable; keep going.
			log.Warn(log.CatWatcher, "Skipping directory", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.match.ignoredDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			log.Warn(log.CatWatcher, "Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "Backend error", err)
			select {
			case w.errs <- fmt.Errorf("%w: %w", ErrWatchBackend, err):
			default:
			}

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.match.ignoredDir(event.Name) {
			if err := w.addTree(event.Name); err != nil {
				log.Warn(log.CatWatcher, "Failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	if !event.Has(fsnotify.Write) {
		return
	}
	if w.match.ignored(event.Name) {
		return
	}
	if !w.limiter.ShouldForward(w.clock.Now()) {
		log.Debug(log.CatWatcher, "Suppressed", "path", event.Name)
		return
	}

	w.deliver(FromFsnotify(event))
}

// deliver puts ev in the one-slot channel, replacing an unconsumed event.
func (w *Watcher) deliver(ev ChangeEvent) {
	for {
		select {
		case w.onChange <- ev:
			log.Debug(log.CatWatcher, "Change", "path", ev.Path())
			return
		default:
		}
		select {
		case <-w.onChange:
		default:
		}
	}
}
