package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/amd/internal/supervisor"
)

// Span attribute keys.
const (
	SpanExecution = "amd.execution"

	AttrExecutionID = "execution.id"
	AttrCommand     = "execution.command"
	AttrTriggerKind = "trigger.kind"
	AttrTriggerPath = "trigger.path"
	AttrPID         = "process.pid"
	AttrStatus      = "execution.status"
	AttrExitCode    = "process.exit_code"
	AttrOutputBytes = "output.bytes"
	AttrCancelled   = "execution.cancelled"
)

// ExecutionTracer opens one span per execution.
type ExecutionTracer struct {
	tracer trace.Tracer
}

// NewExecutionTracer wraps tracer.
func NewExecutionTracer(tracer trace.Tracer) *ExecutionTracer {
	return &ExecutionTracer{tracer: tracer}
}

// TraceExecution starts the span at the execution's start time. The returned
// func records the final state and ends the span.
func (t *ExecutionTracer) TraceExecution(ctx context.Context, ex *supervisor.Execution) func() {
	attrs := []attribute.KeyValue{
		attribute.String(AttrExecutionID, ex.ID()),
		attribute.String(AttrCommand, ex.Command()),
		attribute.Int(AttrPID, ex.PID()),
	}
	if trig := ex.Trigger(); trig != nil {
		attrs = append(attrs, attribute.String(AttrTriggerKind, trig.Kind()))
		if p := trig.Path(); p != "" {
			attrs = append(attrs, attribute.String(AttrTriggerPath, p))
		}
	}

	_, span := t.tracer.Start(ctx, SpanExecution,
		trace.WithTimestamp(ex.StartedAt()),
		trace.WithAttributes(attrs...),
	)

	return func() {
		status := ex.Status()
		_, code := ex.TryWait()

		span.SetAttributes(
			attribute.String(AttrStatus, status.String()),
			attribute.Int(AttrExitCode, code),
			attribute.Int(AttrOutputBytes, ex.Buffer().Len()),
			attribute.Bool(AttrCancelled, ex.Cancelled()),
		)

		switch status.Kind {
		case supervisor.StatusSpawnFailed:
			span.RecordError(ex.SpawnErr())
			span.SetStatus(codes.Error, ex.SpawnErr().Error())
		case supervisor.StatusFailed:
			span.SetStatus(codes.Error, status.String())
		case supervisor.StatusSucceeded, supervisor.StatusCancelled:
			span.SetStatus(codes.Ok, "")
		}

		var opts []trace.SpanEndOption
		if fin := ex.FinishedAt(); !fin.IsZero() {
			opts = append(opts, trace.WithTimestamp(fin))
		}
		span.End(opts...)
	}
}
