package runner

import (
	"context"

	"github.com/zjrosen/amd/internal/log"
	"github.com/zjrosen/amd/internal/supervisor"
	"github.com/zjrosen/amd/internal/watcher"
)

// Starter spawns executions. *supervisor.Supervisor implements it.
type Starter interface {
	StartNew(commandline string, trigger supervisor.Trigger) (*supervisor.Execution, error)
}

// ArbiterConfig wires an Arbiter to its sources and sinks.
type ArbiterConfig struct {
	Command string
	Starter Starter
	// Changes and WatchErrors come from the watcher. Either may be nil when
	// no watcher runs.
	Changes     <-chan watcher.ChangeEvent
	WatchErrors <-chan error
	// Manual carries rerun triggers from the Coordinator.
	Manual <-chan supervisor.Trigger
	// Results and Requests go to the Coordinator.
	Results  chan<- Result
	Requests chan<- Request
	// Supersede terminates a running execution when a file change arrives.
	Supersede bool
}

// Arbiter turns triggers into sequential StartNew calls. It never starts an
// execution before the previous one has drained both output streams.
type Arbiter struct {
	cfg  ArbiterConfig
	prev *supervisor.Execution
}

// NewArbiter creates an Arbiter.
func NewArbiter(cfg ArbiterConfig) *Arbiter {
	return &Arbiter{cfg: cfg}
}

// Run issues the Start trigger and then serves triggers until ctx is done or
// a source fails. A watcher error or a closed source is returned.
func (a *Arbiter) Run(ctx context.Context) error {
	if !a.handle(ctx, supervisor.Start{}) {
		return nil
	}

	for {
		select {
		case ev, ok := <-a.cfg.Changes:
			if !ok {
				return ErrChannelDisconnected
			}
			if !a.handle(ctx, supervisor.Modify{File: ev.Path()}) {
				return nil
			}

		case t, ok := <-a.cfg.Manual:
			if !ok {
				return ErrChannelDisconnected
			}
			if !a.handle(ctx, t) {
				return nil
			}

		case err, ok := <-a.cfg.WatchErrors:
			if !ok {
				return ErrChannelDisconnected
			}
			log.ErrorErr(log.CatArbiter, "Watcher failed", err)
			return err

		case <-ctx.Done():
			return nil
		}
	}
}

// handle runs one trigger to a Result. It returns false if ctx ended first.
func (a *Arbiter) handle(ctx context.Context, t supervisor.Trigger) bool {
	log.Debug(log.CatArbiter, "Trigger", "trigger", supervisor.Describe(t))

	if prev := a.prev; prev != nil {
		if !prev.Status().IsTerminal() {
			if kind, ok := a.preempt(t); ok {
				if !a.request(ctx, Request{Kind: kind, Target: prev}) {
					return false
				}
			}
		}
		select {
		case <-prev.Drained():
		case <-ctx.Done():
			return false
		}
	}

	ex, err := a.cfg.Starter.StartNew(a.cfg.Command, t)
	a.prev = ex

	select {
	case a.cfg.Results <- Result{Trigger: t, Execution: ex, Err: err}:
		return true
	case <-ctx.Done():
		if ex != nil {
			_ = ex.Terminate()
		}
		return false
	}
}

// preempt decides how a still-running previous execution is ended. Manual
// triggers always cancel it; file changes terminate it when superseding.
func (a *Arbiter) preempt(t supervisor.Trigger) (RequestKind, bool) {
	switch t.(type) {
	case supervisor.Manual:
		return RequestCancel, true
	case supervisor.Modify:
		return RequestSupersede, a.cfg.Supersede
	default:
		return 0, false
	}
}

func (a *Arbiter) request(ctx context.Context, r Request) bool {
	select {
	case a.cfg.Requests <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
