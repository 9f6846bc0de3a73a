package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/amd/internal/supervisor"
)

func newRecorder(t *testing.T) (*ExecutionTracer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewExecutionTracer(tp.Tracer("test")), sr
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestTraceExecution_Succeeded(t *testing.T) {
	tracer, sr := newRecorder(t)

	ex, err := supervisor.New(supervisor.WithShell("/bin/sh")).StartNew("echo hi", supervisor.Modify{File: "a.go"})
	require.NoError(t, err)

	end := tracer.TraceExecution(context.Background(), ex)
	require.Empty(t, sr.Ended())
	ex.Wait()
	end()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	require.Equal(t, SpanExecution, span.Name())
	require.Equal(t, codes.Ok, span.Status().Code)
	require.True(t, ex.StartedAt().Equal(span.StartTime()))

	a := attrs(span)
	require.Equal(t, ex.ID(), a[AttrExecutionID].AsString())
	require.Equal(t, "modify", a[AttrTriggerKind].AsString())
	require.Equal(t, "a.go", a[AttrTriggerPath].AsString())
	require.Equal(t, "succeeded", a[AttrStatus].AsString())
	require.Equal(t, int64(3), a[AttrOutputBytes].AsInt64())
	require.Equal(t, int64(ex.PID()), a[AttrPID].AsInt64())
}

func TestTraceExecution_SpawnFailedRecordsError(t *testing.T) {
	tracer, sr := newRecorder(t)

	ex := supervisor.NewFailedExecution("x", "nope", supervisor.Manual{}, &supervisor.SpawnError{Program: "nope", Err: exec.ErrNotFound})
	tracer.TraceExecution(context.Background(), ex)()

	span := sr.Ended()[0]
	require.Equal(t, codes.Error, span.Status().Code)
	require.Equal(t, "nope: command not found", span.Status().Description)
	require.Len(t, span.Events(), 1)
	require.Equal(t, "exception", span.Events()[0].Name)
	_, hasPath := attrs(span)[AttrTriggerPath]
	require.False(t, hasPath)
}

func TestNewProvider_DisabledIsNoop(t *testing.T) {
	p, err := NewProvider(DefaultConfig())
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Validation(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: "file"})
	require.ErrorContains(t, err, "file_path required")

	_, err = NewProvider(Config{Enabled: true, Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported exporter type")
}

func TestNewProvider_NoneExporter(t *testing.T) {
	p, err := NewProvider(Config{Enabled: true, Exporter: "none"})
	require.NoError(t, err)
	require.True(t, p.Enabled())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestFileExporter_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "amd.jsonl")

	p, err := NewProvider(Config{Enabled: true, Exporter: "file", FilePath: path, SampleRate: 1})
	require.NoError(t, err)

	ex := supervisor.NewFailedExecution("id-7", "nope", supervisor.Start{}, &supervisor.SpawnError{Program: "nope", Err: exec.ErrNotFound})
	NewExecutionTracer(p.Tracer()).TraceExecution(context.Background(), ex)()
	require.NoError(t, p.Shutdown(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var rec SpanRecord
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
	require.Equal(t, SpanExecution, rec.Name)
	require.Equal(t, "ERROR", rec.Status)
	require.Equal(t, "id-7", rec.Attributes[AttrExecutionID])
	require.NotEmpty(t, rec.Events)
	require.False(t, scanner.Scan(), "exactly one span expected")
}

func TestFileExporter_ShutdownIdempotent(t *testing.T) {
	e, err := NewFileExporter(filepath.Join(t.TempDir(), "t.jsonl"))
	require.NoError(t, err)

	require.NoError(t, e.Shutdown(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))
	require.Error(t, e.ExportSpans(context.Background(), nil))
}
