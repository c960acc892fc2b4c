// Package engine implements the Interaction Engine (C6): the agentic loop
// state machine that orchestrates Context (C1), Tool Registry (C2),
// Guardrail Chain (C3), Structured Stream Parser (C4), and Tool Plan
// Executor (C5) into one run (§4.6).
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/agentcore/runtime/agentctx"
	"github.com/agentcore/runtime/agentdef"
	"github.com/agentcore/runtime/errs"
	"github.com/agentcore/runtime/model"
	"github.com/agentcore/runtime/snapshot"
	"github.com/agentcore/runtime/streamparse"
	"github.com/agentcore/runtime/telemetry"
)

// Status classifies the outcome of one Engine.Interact (or Resume) call.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusPaused  Status = "paused"
	StatusHandoff Status = "handoff"
)

// Result is the public, never-throws outcome of a run (§4.6.1's closing
// paragraph, §7's "the public result value always carries {status, output?,
// error?, context, telemetry}").
type Result struct {
	Status Status

	// RunID is this run's handle, usable with Cancel and as the key a
	// caller-managed snapshot.Store was (or would be) saved under.
	RunID string

	// Output carries the final assistant text for StatusOK text runs.
	Output string
	// Parsed carries the final structured-output object when the agent
	// declares a StructuredOutputSchema.
	Parsed json.RawMessage

	Error *errs.Error

	// Context is the run's Context as of termination, for callers that want
	// to continue the conversation (e.g. as input to the next Interact).
	Context *agentctx.Context

	// HandoffTarget/HandoffContext are populated when Status == StatusHandoff.
	HandoffTarget  string
	HandoffContext *agentctx.Context

	// Snapshot is populated when Status == StatusPaused, ready to be handed
	// to a snapshot.Store and later to Resume.
	Snapshot *snapshot.Snapshot

	TurnCount int
}

// Options configures an Engine.
type Options struct {
	Client model.Client

	SnapshotStore snapshot.Store

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
	Sink    telemetry.Sink

	// DefaultMaxTurns applies when an Agent Definition leaves MaxTurns at
	// zero.
	DefaultMaxTurns int `yaml:"default_max_turns"`
	// MaxToolCallsPerBatch bounds a single LLM turn's tool call count
	// (§5, default 64).
	MaxToolCallsPerBatch int `yaml:"max_tool_calls_per_batch"`
	// MaxSubAgentDepth bounds nested sub-agent-as-tool recursion
	// (§4.6.3, default 8).
	MaxSubAgentDepth int `yaml:"max_sub_agent_depth"`
	// MaxStreamIdleTime bounds each streamed LLM call as a whole (§5,
	// default 120s): the engine applies it as one deadline per call, and
	// the deadline is not reset when a chunk arrives.
	MaxStreamIdleTime time.Duration `yaml:"max_stream_idle_time"`
	// MaxStructuredRetries bounds reflective retries of a structured-output
	// parse failure (§4.6.1 step 4, default 1).
	MaxStructuredRetries int `yaml:"max_structured_retries"`
	// MaxReflections is the default reflection bound (default 1). The
	// engine runs no critic loop and does not read this value.
	MaxReflections int `yaml:"max_reflections"`

	Retry RetrySchedule `yaml:"retry"`
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.DefaultMaxTurns <= 0 {
		out.DefaultMaxTurns = 10
	}
	if out.MaxToolCallsPerBatch <= 0 {
		out.MaxToolCallsPerBatch = 64
	}
	if out.MaxSubAgentDepth <= 0 {
		out.MaxSubAgentDepth = 8
	}
	if out.MaxStreamIdleTime <= 0 {
		out.MaxStreamIdleTime = 120 * time.Second
	}
	if out.MaxStructuredRetries <= 0 {
		out.MaxStructuredRetries = 1
	}
	if out.MaxReflections <= 0 {
		out.MaxReflections = 1
	}
	if out.Logger == nil {
		out.Logger = telemetry.NewNoopLogger()
	}
	if out.Metrics == nil {
		out.Metrics = telemetry.NewNoopMetrics()
	}
	if out.Tracer == nil {
		out.Tracer = telemetry.NewNoopTracer()
	}
	if out.Sink == nil {
		out.Sink = telemetry.NewNoopSink()
	}
	out.Retry = out.Retry.withDefaults()
	return out
}

// Engine is the default, synchronous, in-process Interaction Engine. It
// holds no process-wide mutable state beyond the cancellation registry
// needed to support Cancel (§3.2's "holds no process-wide mutable state"
// refers to run state; the cancel registry is bookkeeping, not Context
// state).
type Engine struct {
	opts Options

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New constructs an Engine from opts, applying documented defaults for any
// zero-valued resource budget.
func New(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults(), cancels: make(map[string]context.CancelFunc)}
}

// Interact implements §6.5's `interact(agent, input, context?) -> result`.
// A nil actx starts a fresh Context.
func (e *Engine) Interact(ctx context.Context, def *agentdef.Definition, input string, actx *agentctx.Context) (*Result, error) {
	return e.run(ctx, runRequest{def: def, input: input, actx: actx, runID: newRunID(), events: streamparse.NoopEvents{}})
}

// InteractStream implements §6.5's `interact_stream`, invoking ev's
// callbacks as the run progresses.
func (e *Engine) InteractStream(ctx context.Context, def *agentdef.Definition, input string, actx *agentctx.Context, ev streamparse.Events) (*Result, error) {
	if ev == nil {
		ev = streamparse.NoopEvents{}
	}
	return e.run(ctx, runRequest{def: def, input: input, actx: actx, runID: newRunID(), events: ev})
}

// InteractStructured implements §6.5's `interact_structured<T>`. The
// Definition must declare a StructuredOutputSchema; the returned Result's
// Parsed field carries the schema-valid object.
func (e *Engine) InteractStructured(ctx context.Context, def *agentdef.Definition, input string, actx *agentctx.Context) (*Result, error) {
	if len(def.StructuredOutputSchema) == 0 {
		return nil, errs.New(errs.KindInvalidConfig, "InteractStructured requires a StructuredOutputSchema on the agent definition")
	}
	return e.run(ctx, runRequest{def: def, input: input, actx: actx, runID: newRunID(), events: streamparse.NoopEvents{}, structured: true})
}

// Resume implements §6.5's `resume(snapshot) -> result`. snap must have a
// recorded decision for every pending confirmation-required call
// (§8 invariant 6); otherwise Resume fails with errs.KindConfirmationMissing
// and makes no side effects.
func (e *Engine) Resume(ctx context.Context, def *agentdef.Definition, snap *snapshot.Snapshot) (*Result, error) {
	if !snap.ReadyToResume() {
		return nil, errs.New(errs.KindConfirmationMissing, "snapshot has undecided pending calls: %v", snap.MissingDecisions())
	}
	actx := agentctx.New(def.Memory)
	for _, m := range snap.Context {
		actx.Append(m)
	}
	runID := snap.RunID
	if runID == "" {
		runID = newRunID()
	}
	e.emit(ctx, telemetry.EventResume, runID, map[string]any{"agent": def.Name})
	return e.run(ctx, runRequest{
		def:           def,
		actx:          actx,
		runID:         runID,
		events:        streamparse.NoopEvents{},
		resumeBatch:   snap.PendingBatch,
		resumePartial: snap.PartialResults,
	})
}

// Cancel implements §6.5's `cancel(handle)`, cooperatively canceling the run
// identified by runID at its next suspension point (§5).
func (e *Engine) Cancel(runID string) {
	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Engine) registerCancel(runID string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.cancels[runID] = cancel
	e.mu.Unlock()
}

func (e *Engine) unregisterCancel(runID string) {
	e.mu.Lock()
	delete(e.cancels, runID)
	e.mu.Unlock()
}
