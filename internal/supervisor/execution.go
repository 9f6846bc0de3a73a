package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/zjrosen/amd/internal/log"
)

// EndSignal marks the end of one captured stream.
type EndSignal int

const (
	StdoutDone EndSignal = iota
	StderrDone
)

func (s EndSignal) String() string {
	if s == StdoutDone {
		return "stdout"
	}
	return "stderr"
}

// Execution is one run of the command line. A spawned execution owns its
// child; a failed one has no child, an empty buffer and is already drained.
type Execution struct {
	id        string
	trigger   Trigger
	command   string
	startedAt time.Time
	cmd       *exec.Cmd
	buffer    *Buffer
	spawnErr  error

	mu         sync.Mutex
	cancelled  bool
	terminated bool
	exited     bool
	exitCode   int
	finishedAt time.Time
	ended      [2]bool
	remaining  int

	drained chan struct{}
	done    chan struct{}
}

func newExecution(id, command string, trigger Trigger, startedAt time.Time) *Execution {
	return &Execution{
		id:        id,
		trigger:   trigger,
		command:   command,
		startedAt: startedAt,
		buffer:    &Buffer{},
		remaining: 2,
		drained:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// NewFailedExecution records a spawn that never produced a child.
func NewFailedExecution(id, command string, trigger Trigger, err error) *Execution {
	now := time.Now()
	ex := newExecution(id, command, trigger, now)
	ex.spawnErr = err
	ex.exited = true
	ex.exitCode = -1
	ex.finishedAt = now
	ex.remaining = 0
	ex.ended = [2]bool{true, true}
	close(ex.drained)
	close(ex.done)
	return ex
}

func (e *Execution) ID() string           { return e.id }
func (e *Execution) Trigger() Trigger     { return e.trigger }
func (e *Execution) Command() string      { return e.command }
func (e *Execution) StartedAt() time.Time { return e.startedAt }
func (e *Execution) Buffer() *Buffer      { return e.buffer }

// SpawnErr is the spawn failure for a SpawnFailed execution, or nil.
func (e *Execution) SpawnErr() error { return e.spawnErr }

// PID returns the child's process id, or 0 when there is no child.
func (e *Execution) PID() int {
	if e.cmd == nil || e.cmd.Process == nil {
		return 0
	}
	return e.cmd.Process.Pid
}

// Drained is closed once both streams have reached end of file.
func (e *Execution) Drained() <-chan struct{} { return e.drained }

// Done is closed once the child has been reaped and its status is terminal.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Ended reports whether sig has been observed.
func (e *Execution) Ended(sig EndSignal) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended[sig]
}

// Cancelled reports whether the user requested the kill.
func (e *Execution) Cancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// Status classifies the execution. It is Running until the child is reaped.
func (e *Execution) Status() Status {
	if e.spawnErr != nil {
		return SpawnFailed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.exited {
		return Running
	}
	return Classify(e.cancelled, e.exitCode)
}

// TryWait reports whether the child has exited, without blocking, and its
// exit code if so.
func (e *Execution) TryWait() (bool, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exited, e.exitCode
}

// FinishedAt is the reap time, zero while running.
func (e *Execution) FinishedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishedAt
}

// Elapsed is the run time so far, or the total once finished.
func (e *Execution) Elapsed(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exited {
		return e.finishedAt.Sub(e.startedAt)
	}
	return now.Sub(e.startedAt)
}

// Terminate kills the child if it is still running. Calling it again, or on
// an execution that already exited, is a no-op.
func (e *Execution) Terminate() error {
	e.mu.Lock()
	if e.exited || e.terminated || e.cmd == nil || e.cmd.Process == nil {
		e.mu.Unlock()
		return nil
	}
	e.terminated = true
	e.mu.Unlock()

	log.Debug(log.CatSupervisor, "Terminating", "id", e.id, "pid", e.PID())
	if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing pid %d: %w", e.PID(), err)
	}
	return nil
}

// Cancel is a user-initiated kill: it marks the execution cancelled, once,
// then terminates it. Finished executions are left as they are.
func (e *Execution) Cancel() error {
	e.mu.Lock()
	if e.exited {
		e.mu.Unlock()
		return nil
	}
	e.cancelled = true
	e.mu.Unlock()

	return e.Terminate()
}

// Wait blocks until the execution is done.
func (e *Execution) Wait() Status {
	<-e.done
	return e.Status()
}

func (e *Execution) signalEnd(sig EndSignal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended[sig] {
		return
	}
	e.ended[sig] = true
	e.remaining--
	if e.remaining == 0 {
		close(e.drained)
	}
}

func (e *Execution) recordExit(code int, at time.Time) {
	e.mu.Lock()
	e.exited = true
	e.exitCode = code
	e.finishedAt = at
	e.mu.Unlock()
	close(e.done)
}
