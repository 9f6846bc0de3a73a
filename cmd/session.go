package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zjrosen/amd/internal/app"
	"github.com/zjrosen/amd/internal/cachemanager"
	"github.com/zjrosen/amd/internal/config"
	"github.com/zjrosen/amd/internal/history"
	"github.com/zjrosen/amd/internal/log"
	"github.com/zjrosen/amd/internal/pubsub"
	"github.com/zjrosen/amd/internal/runner"
	"github.com/zjrosen/amd/internal/supervisor"
	"github.com/zjrosen/amd/internal/tracing"
	"github.com/zjrosen/amd/internal/watcher"
)

// shutdownTimeout bounds flushing spans on exit.
const shutdownTimeout = 2 * time.Second

// session is one amd invocation: the watcher, the supervisor, and the
// goroutines that connect them.
type session struct {
	cfg     config.Config
	command string
	root    string

	supervisor  *supervisor.Supervisor
	watcher     *watcher.Watcher
	coordinator *runner.Coordinator
	arbiter     *runner.Arbiter
	history     *history.Store
	tracing     *tracing.Provider
}

// generatedFiles lists the files amd itself writes for c: the history
// database with its WAL and shared-memory files, the trace export file, and
// any extra paths.
func generatedFiles(c config.Config, extra ...string) []string {
	var files []string
	if c.History.Enabled && c.History.Path != "" {
		files = append(files, c.History.Path, c.History.Path+"-wal", c.History.Path+"-shm", c.History.Path+"-journal")
	}
	if c.Tracing.FilePath != "" {
		files = append(files, c.Tracing.FilePath)
	}
	for _, f := range extra {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// newSession builds every component and starts the watcher. History and
// tracing failures are logged and the feature is disabled; a watcher that
// cannot start is an error. ownFiles are extra paths amd writes, such as
// the debug log, that must not trigger runs.
func newSession(c config.Config, command, root string, ownFiles ...string) (*session, error) {
	s := &session{cfg: c, command: command, root: root}

	s.supervisor = supervisor.New(
		supervisor.WithShell(c.Shell),
		supervisor.WithDir(root),
		supervisor.WithDiagnosticsEnv(c.DiagnosticsEnv),
		supervisor.WithLookupCache(cachemanager.NewLookupCache(cachemanager.DefaultExpiration, nil)),
		supervisor.WithIDGenerator(uuid.NewString),
	)

	var recorder runner.Recorder
	if c.History.Enabled {
		store, err := history.Open(c.History.Path, c.History.Limit)
		if err != nil {
			log.ErrorErr(log.CatHistory, "Opening history failed, history disabled", err, "path", c.History.Path)
		} else {
			s.history = store
			recorder = store
		}
	}

	var tracer runner.Tracer
	provider, err := tracing.NewProvider(c.Tracing)
	if err != nil {
		log.ErrorErr(log.CatTrace, "Creating trace provider failed, tracing disabled", err)
	} else {
		s.tracing = provider
		if provider.Enabled() {
			tracer = tracing.NewExecutionTracer(provider.Tracer())
		}
	}

	s.coordinator = runner.NewCoordinator(runner.CoordinatorConfig{
		Command:  command,
		Bus:      pubsub.NewRetainingBroker[runner.Event](),
		Recorder: recorder,
		Tracer:   tracer,
		NewID:    s.supervisor.NewID,
	})

	w, err := watcher.New(watcher.Config{
		Root:        root,
		Window:      c.Debounce,
		Ignore:      c.Watch.Ignore,
		IgnoreFiles: generatedFiles(c, ownFiles...),
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.watcher = w
	changes, err := w.Start()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}

	s.arbiter = runner.NewArbiter(runner.ArbiterConfig{
		Command:     command,
		Starter:     s.supervisor,
		Changes:     changes,
		WatchErrors: w.Errors(),
		Manual:      s.coordinator.Manual(),
		Results:     s.coordinator.Results(),
		Requests:    s.coordinator.Requests(),
		Supersede:   c.Supersede,
	})

	log.Info(log.CatConfig, "Session ready", "root", root, "command", command, "supersede", c.Supersede,
		"debounce", c.Debounce, "history", s.history != nil, "tracing", tracer != nil)
	return s, nil
}

// Run serves the session until the coordinator stops, ui returns, or a
// component fails. The first error is returned. ui may be nil.
func (s *session) Run(ctx context.Context, ui func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return s.coordinator.Run(gctx)
	})

	g.Go(func() error {
		err := s.arbiter.Run(gctx)
		if err != nil {
			s.coordinator.Bus().Publish(pubsub.FatalEvent, runner.Event{Err: err})
		}
		return err
	})

	if ui != nil {
		g.Go(func() error {
			defer cancel()
			return ui(gctx)
		})
	}

	return g.Wait()
}

// runUI runs the terminal interface until the user quits or ctx ends.
func (s *session) runUI(ctx context.Context) error {
	m := app.New(app.Config{
		Version:    version,
		Root:       s.root,
		Command:    s.command,
		Supersede:  s.cfg.Supersede,
		Follow:     s.cfg.UI.Follow,
		ShowHelp:   s.cfg.UI.ShowHelp,
		Debug:      log.Enabled(),
		Events:     s.coordinator.Bus(),
		Controller: s.coordinator,
		Resolver:   s.supervisor,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Close stops the watcher and releases history and tracing.
func (s *session) Close() {
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			log.ErrorErr(log.CatWatcher, "Stopping watcher failed", err)
		}
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			log.ErrorErr(log.CatHistory, "Closing history failed", err)
		}
	}
	if s.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.tracing.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatTrace, "Flushing traces failed", err)
		}
	}
}
