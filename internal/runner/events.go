// Package runner serializes triggers into executions and owns the active one.
package runner

import (
	"errors"

	"github.com/zjrosen/amd/internal/outputdiff"
	"github.com/zjrosen/amd/internal/supervisor"
)

// ErrChannelDisconnected means a trigger source closed its channel. Sources
// live as long as the program, so this is a wiring defect.
var ErrChannelDisconnected = errors.New("trigger channel disconnected")

// Event is the payload published on the execution bus.
type Event struct {
	Execution *supervisor.Execution
	// Diff compares a finished execution with the previous finished one.
	// Only set on FinishedEvent when HasDiff is true.
	Diff    outputdiff.Summary
	HasDiff bool
	// Active is false for a finished execution that was superseded before
	// it ended.
	Active bool
	// Err is set on FatalEvent.
	Err error
}

// RequestKind is a control message handled by the Coordinator.
type RequestKind int

const (
	// RequestCancel kills the active execution as user-cancelled.
	RequestCancel RequestKind = iota
	// RequestRerun cancels the active execution and queues a Manual trigger.
	RequestRerun
	// RequestSupersede terminates Target before its replacement starts.
	RequestSupersede
	// RequestQuit terminates the active execution and stops the Coordinator.
	RequestQuit
)

func (k RequestKind) String() string {
	switch k {
	case RequestCancel:
		return "cancel"
	case RequestRerun:
		return "rerun"
	case RequestSupersede:
		return "supersede"
	case RequestQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Request is a control message. Target names the execution for
// RequestSupersede; for RequestCancel it overrides the active one.
type Request struct {
	Kind   RequestKind
	Target *supervisor.Execution
}

// Result is the outcome of one StartNew call, sent from Arbiter to Coordinator.
type Result struct {
	Trigger   supervisor.Trigger
	Execution *supervisor.Execution
	Err       error
}
