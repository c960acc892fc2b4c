// Package telemetry defines the observability contracts the engine emits
// against (§6.3). The engine never blocks on a sink and treats telemetry as
// best-effort; a pluggable no-op implementation is always safe to use.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the runtime. The
// interface is intentionally small so tests can provide lightweight stubs
// without pulling in a concrete logging backend.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter/timer/gauge helpers for runtime instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so runtime code remains agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// RunEvent names a point in the run lifecycle the engine emits telemetry for
// (§6.3). Sinks key off Name to route events to counters, logs, or both.
type RunEvent struct {
	Name   string
	RunID  string
	Fields map[string]any
}

// Standard event names for the points named in §6.3. The engine emits all
// of them except EventToolCallStart and EventToolCallEnd, which it does not
// emit.
const (
	EventRunStart         = "run_start"
	EventTurnStart        = "turn_start"
	EventLLMCallStart     = "llm_call_start"
	EventLLMCallEnd       = "llm_call_end"
	EventToolCallStart    = "tool_call_start"
	EventToolCallEnd      = "tool_call_end"
	EventGuardrailReject  = "guardrail_reject"
	EventHandoff          = "handoff"
	EventPause            = "pause"
	EventResume           = "resume"
	EventRunEnd           = "run_end"
)

// Sink is the pluggable telemetry collaborator from §6.3. The engine emits
// events synchronously but never waits on the sink's own I/O; Emit
// implementations must return quickly or hand off internally.
type Sink interface {
	Emit(ctx context.Context, event RunEvent)
}
