package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zjrosen/amd/internal/log"
	"github.com/zjrosen/amd/internal/outputdiff"
	"github.com/zjrosen/amd/internal/pubsub"
	"github.com/zjrosen/amd/internal/supervisor"
)

// Recorder persists finished executions.
type Recorder interface {
	Record(ctx context.Context, ex *supervisor.Execution) error
}

// recordQueueSize bounds finished executions waiting to be recorded.
const recordQueueSize = 32

// Tracer opens a span for an execution. The returned func ends it and is
// called once the execution is done.
type Tracer interface {
	TraceExecution(ctx context.Context, ex *supervisor.Execution) (end func())
}

// CoordinatorConfig holds the Coordinator's collaborators. Recorder and
// Tracer are optional.
type CoordinatorConfig struct {
	Command  string
	Bus      *pubsub.Broker[Event]
	Recorder Recorder
	Tracer   Tracer
	NewID    func() string
}

// Coordinator owns the active execution slot. Only its Run goroutine reads or
// writes the slot; everything else talks to it over channels.
type Coordinator struct {
	cfg CoordinatorConfig

	results  chan Result
	requests chan Request
	manual   chan supervisor.Trigger
	finished chan *supervisor.Execution
	stopped  chan struct{}

	// Recording runs on its own goroutine so disk writes never hold up
	// requests.
	records    chan *supervisor.Execution
	recordDone chan struct{}

	// Owned by Run.
	active     *supervisor.Execution
	lastOutput []byte
	hasLast    bool
	spans      map[string]func()
}

// NewCoordinator creates a Coordinator. Call Run to start it.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Bus == nil {
		cfg.Bus = pubsub.NewRetainingBroker[Event]()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Coordinator{
		cfg:      cfg,
		results:  make(chan Result),
		requests: make(chan Request),
		manual:   make(chan supervisor.Trigger, 1),
		finished: make(chan *supervisor.Execution),
		stopped:  make(chan struct{}),
		spans:    make(map[string]func()),
	}
}

// recordLoop writes queued executions until the queue is closed.
func (c *Coordinator) recordLoop(ctx context.Context) {
	defer close(c.recordDone)
	for ex := range c.records {
		if err := c.cfg.Recorder.Record(ctx, ex); err != nil {
			log.ErrorErr(log.CatCoordinator, "Recording execution failed", err, "id", ex.ID())
		}
	}
}

// Results is where the Arbiter delivers StartNew outcomes.
func (c *Coordinator) Results() chan<- Result { return c.results }

// Requests accepts control messages.
func (c *Coordinator) Requests() chan<- Request { return c.requests }

// Manual delivers rerun triggers to the Arbiter.
func (c *Coordinator) Manual() <-chan supervisor.Trigger { return c.manual }

// Bus returns the execution event bus.
func (c *Coordinator) Bus() *pubsub.Broker[Event] { return c.cfg.Bus }

// Stopped is closed when Run has returned.
func (c *Coordinator) Stopped() <-chan struct{} { return c.stopped }

// Cancel kills the active execution and marks it cancelled.
func (c *Coordinator) Cancel() { c.send(Request{Kind: RequestCancel}) }

// Rerun cancels the active execution and starts a new one.
func (c *Coordinator) Rerun() { c.send(Request{Kind: RequestRerun}) }

// Quit terminates the active execution and stops the Coordinator.
func (c *Coordinator) Quit() { c.send(Request{Kind: RequestQuit}) }

func (c *Coordinator) send(r Request) {
	select {
	case c.requests <- r:
	case <-c.stopped:
	}
}

// Run serves results and requests until ctx is done or Quit is received.
// A spawn failure of the Start trigger is returned as fatal. Run returns
// after every queued execution has been recorded.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.stopped)
	defer c.shutdown()

	if c.cfg.Recorder != nil {
		c.records = make(chan *supervisor.Execution, recordQueueSize)
		c.recordDone = make(chan struct{})
		go c.recordLoop(context.WithoutCancel(ctx))
	}

	for {
		select {
		case res := <-c.results:
			if err := c.install(ctx, res); err != nil {
				c.cfg.Bus.Publish(pubsub.FatalEvent, Event{Err: err})
				return err
			}

		case req := <-c.requests:
			if c.control(req) {
				return nil
			}

		case ex := <-c.finished:
			c.finish(ex)

		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Coordinator) install(ctx context.Context, res Result) error {
	ex := res.Execution
	if res.Err != nil {
		if _, ok := res.Trigger.(supervisor.Start); ok || errors.Is(res.Err, supervisor.ErrEmptyCommand) {
			return fmt.Errorf("starting %q: %w", c.cfg.Command, res.Err)
		}
		log.Warn(log.CatCoordinator, "Spawn failed", "trigger", supervisor.Describe(res.Trigger), "error", res.Err)
		ex = supervisor.NewFailedExecution(c.cfg.NewID(), c.cfg.Command, res.Trigger, res.Err)
	}

	if prev := c.active; prev != nil {
		if err := prev.Terminate(); err != nil {
			log.ErrorErr(log.CatCoordinator, "Terminate previous failed", err, "id", prev.ID())
		}
	}
	c.active = ex

	if c.cfg.Tracer != nil {
		c.spans[ex.ID()] = c.cfg.Tracer.TraceExecution(ctx, ex)
	}
	go c.watch(ex)

	log.Info(log.CatCoordinator, "Installed", "id", ex.ID(), "pid", ex.PID(), "trigger", supervisor.Describe(ex.Trigger()))
	c.cfg.Bus.Publish(pubsub.StartedEvent, Event{Execution: ex, Active: true})
	return nil
}

// watch reports ex back to Run once it is done.
func (c *Coordinator) watch(ex *supervisor.Execution) {
	select {
	case <-ex.Done():
	case <-c.stopped:
		return
	}
	select {
	case c.finished <- ex:
	case <-c.stopped:
	}
}

func (c *Coordinator) finish(ex *supervisor.Execution) {
	if end, ok := c.spans[ex.ID()]; ok {
		end()
		delete(c.spans, ex.ID())
	}

	if c.records != nil {
		select {
		case c.records <- ex:
		default:
			log.Warn(log.CatCoordinator, "Record queue full, dropping run", "id", ex.ID())
		}
	}

	ev := Event{Execution: ex, Active: ex == c.active}
	if ev.Active && ex.SpawnErr() == nil {
		out := ex.Buffer().Snapshot()
		if c.hasLast {
			ev.Diff = outputdiff.Compare(c.lastOutput, out)
			ev.HasDiff = true
		}
		c.lastOutput, c.hasLast = out, true
	}

	log.Info(log.CatCoordinator, "Finished", "id", ex.ID(), "status", ex.Status(), "active", ev.Active)
	c.cfg.Bus.Publish(pubsub.FinishedEvent, ev)
}

// control applies a request and reports whether the Coordinator should stop.
func (c *Coordinator) control(req Request) bool {
	log.Debug(log.CatCoordinator, "Request", "kind", req.Kind)

	switch req.Kind {
	case RequestCancel:
		target := req.Target
		if target == nil {
			target = c.active
		}
		if target != nil {
			if err := target.Cancel(); err != nil {
				log.ErrorErr(log.CatCoordinator, "Cancel failed", err, "id", target.ID())
			}
		}

	case RequestRerun:
		if c.active != nil {
			if err := c.active.Cancel(); err != nil {
				log.ErrorErr(log.CatCoordinator, "Cancel failed", err, "id", c.active.ID())
			}
		}
		select {
		case c.manual <- supervisor.Manual{}:
		default:
			// A rerun is already queued.
		}

	case RequestSupersede:
		if req.Target != nil {
			if err := req.Target.Terminate(); err != nil {
				log.ErrorErr(log.CatCoordinator, "Terminate failed", err, "id", req.Target.ID())
			}
		}

	case RequestQuit:
		return true
	}
	return false
}

func (c *Coordinator) shutdown() {
	if c.active != nil {
		if err := c.active.Terminate(); err != nil {
			log.ErrorErr(log.CatCoordinator, "Terminate on shutdown failed", err, "id", c.active.ID())
		}
	}
	for id, end := range c.spans {
		end()
		delete(c.spans, id)
	}
	if c.records != nil {
		close(c.records)
		<-c.recordDone
	}
}
