package supervisor

import "fmt"

// StatusKind is the lifecycle state of an execution.
type StatusKind int

const (
	// StatusRunning: child spawned, not yet reaped.
	StatusRunning StatusKind = iota
	// StatusSucceeded: exited with code 0.
	StatusSucceeded
	// StatusFailed: exited non-zero or was killed without a cancel request.
	StatusFailed
	// StatusCancelled: the user asked for the kill. Overrides the exit code.
	StatusCancelled
	// StatusSpawnFailed: no child was ever created.
	StatusSpawnFailed
)

// Status is a StatusKind plus the exit code for StatusFailed.
// ExitCode is -1 when the child was ended by a signal.
type Status struct {
	Kind     StatusKind
	ExitCode int
}

var (
	Running     = Status{Kind: StatusRunning}
	Succeeded   = Status{Kind: StatusSucceeded}
	Cancelled   = Status{Kind: StatusCancelled}
	SpawnFailed = Status{Kind: StatusSpawnFailed}
)

// Failed returns the failed status for code.
func Failed(code int) Status {
	return Status{Kind: StatusFailed, ExitCode: code}
}

// Classify maps a reaped child to its terminal status.
func Classify(cancelled bool, exitCode int) Status {
	switch {
	case cancelled:
		return Cancelled
	case exitCode == 0:
		return Succeeded
	default:
		return Failed(exitCode)
	}
}

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s.Kind {
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		if s.ExitCode < 0 {
			return "failed (signal)"
		}
		return fmt.Sprintf("failed (exit %d)", s.ExitCode)
	case StatusCancelled:
		return "cancelled"
	case StatusSpawnFailed:
		return "spawn failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s.Kind != StatusRunning
}
