package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentcore/runtime/agentctx"
	"github.com/agentcore/runtime/agentdef"
	"github.com/agentcore/runtime/errs"
	"github.com/agentcore/runtime/guardrail"
	"github.com/agentcore/runtime/model"
	"github.com/agentcore/runtime/planexec"
	"github.com/agentcore/runtime/snapshot"
	"github.com/agentcore/runtime/streamparse"
	"github.com/agentcore/runtime/telemetry"
)

// runRequest bundles one call to run: a fresh turn from user input, or a
// resume of a paused batch.
type runRequest struct {
	def    *agentdef.Definition
	input  string
	actx   *agentctx.Context
	runID  string
	events streamparse.Events

	// structured forces the structured-output path even when called via
	// InteractStructured rather than a Definition.StructuredOutputSchema
	// check alone.
	structured bool

	// resumeBatch/resumePartial carry a paused run's decided batch back in;
	// nil for a fresh run.
	resumeBatch   []snapshot.PendingCall
	resumePartial map[string]planexec.ToolResult

	// depth is the sub-agent recursion depth (0 for a top-level run).
	depth int
}

// run is the Interaction Engine's single entry point: every public method
// builds a runRequest and delegates here (§4.6.1).
func (e *Engine) run(ctx context.Context, req runRequest) (*Result, error) {
	def := req.def
	if problems := def.Validate(); len(problems) > 0 {
		return nil, errs.New(errs.KindInvalidConfig, "invalid agent definition %q: %v", def.Name, problems)
	}

	actx := req.actx
	if actx == nil {
		actx = agentctx.New(def.Memory)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.registerCancel(req.runID, cancel)
	defer e.unregisterCancel(req.runID)

	e.emit(runCtx, telemetry.EventRunStart, req.runID, map[string]any{"agent": def.Name})

	structured := req.structured || len(def.StructuredOutputSchema) > 0

	if len(req.resumeBatch) > 0 || req.resumePartial != nil {
		results, err := e.settleResumedBatch(runCtx, def, actx, req.depth, req.resumeBatch)
		if err != nil {
			return e.finish(runCtx, req.runID, actx, err)
		}
		appendToolResults(actx, results)
	} else {
		outcome, err := e.runInputGuard(runCtx, def, req.input)
		if err != nil {
			return e.finish(runCtx, req.runID, nil, err)
		}
		if outcome.Rejected {
			e.emit(runCtx, telemetry.EventGuardrailReject, req.runID, map[string]any{"guardrail": outcome.RejectedBy, "reason": outcome.Reason, "stage": "input"})
			rejErr := errs.New(errs.KindInputGuardrailReject, "input rejected by guardrail %q: %s", outcome.RejectedBy, outcome.Reason)
			return e.finish(runCtx, req.runID, actx, rejErr)
		}
		actx.Append(model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: outcome.Text}}})
	}

	maxTurns := def.MaxTurns
	if maxTurns <= 0 {
		maxTurns = e.opts.DefaultMaxTurns
	}

	structuredRetries := 0

	for {
		select {
		case <-runCtx.Done():
			return e.finishCanceled(runCtx, req.runID, actx)
		default:
		}

		turn := actx.IncrementTurn()
		e.emit(runCtx, telemetry.EventTurnStart, req.runID, map[string]any{"turn": turn})

		llmCtx, cancelLLM := context.WithTimeout(runCtx, e.opts.MaxStreamIdleTime)
		reqPayload := buildRequest(def, actx, structured)
		e.emit(llmCtx, telemetry.EventLLMCallStart, req.runID, map[string]any{"turn": turn})
		summary, err := e.llmTurn(llmCtx, reqPayload, req.events, structured)
		cancelLLM()
		e.emit(runCtx, telemetry.EventLLMCallEnd, req.runID, map[string]any{"turn": turn})
		if err != nil {
			if runCtx.Err() != nil {
				return e.finishCanceled(runCtx, req.runID, actx)
			}
			return e.finish(runCtx, req.runID, actx, classifyTransportErr(err))
		}

		if handoffTarget, handoffPayload, ok := detectHandoff(def, summary.ToolCalls); ok {
			actx.Append(model.Message{Role: model.RoleAssistant, Parts: []model.Part{
				model.HandoffPart{TargetAgentID: handoffTarget.Name, TransferredContext: handoffPayload},
			}})
			e.emit(runCtx, telemetry.EventHandoff, req.runID, map[string]any{"target": handoffTarget.Name})
			e.emit(runCtx, telemetry.EventRunEnd, req.runID, map[string]any{"status": StatusHandoff})
			if e.opts.SnapshotStore != nil {
				_ = e.opts.SnapshotStore.Delete(runCtx, req.runID)
			}
			return &Result{
				RunID:          req.runID,
				Status:         StatusHandoff,
				Context:        actx,
				HandoffTarget:  handoffTarget.Name,
				HandoffContext: actx,
				TurnCount:      actx.TurnCount(),
			}, nil
		}

		if len(summary.ToolCalls) > 0 {
			calls := capToolCalls(summary.ToolCalls, e.opts.MaxToolCallsPerBatch, e.opts.Logger, runCtx)
			actx.Append(assistantToolCallMessage(summary.Text, calls))

			if anyRequiresConfirmation(def, calls) {
				snap := e.buildPauseSnapshot(def, req.runID, actx, calls, req.resumePartial)
				if e.opts.SnapshotStore != nil {
					if err := e.opts.SnapshotStore.Save(runCtx, req.runID, snap); err != nil {
						e.opts.Logger.Warn(runCtx, "failed to persist paused run snapshot", "run_id", req.runID, "error", err)
					}
				}
				e.emit(runCtx, telemetry.EventPause, req.runID, map[string]any{"pending": len(calls)})
				return &Result{RunID: req.runID, Status: StatusPaused, Context: actx, Snapshot: snap, TurnCount: actx.TurnCount()}, nil
			}

			results, err := e.executeBatch(runCtx, def, actx, req.depth, toPlanexecCalls(calls))
			if err != nil {
				return e.finish(runCtx, req.runID, actx, err)
			}
			appendToolResults(actx, results)

			if turn >= maxTurns {
				return e.finish(runCtx, req.runID, actx, errs.New(errs.KindMaxTurnsExceeded, "agent %q exceeded max turns (%d) before reaching a terminal response", def.Name, maxTurns))
			}
			continue
		}

		// Pure text turn.
		priorLen := actx.Len()
		actx.Append(model.Message{Role: model.RoleAssistant, Parts: []model.Part{model.TextPart{Text: summary.Text}}})

		if structured {
			final, verr := validateStructured(def.StructuredOutputSchema, summary.Final)
			if verr != nil {
				if structuredRetries >= e.opts.MaxStructuredRetries {
					return e.finish(runCtx, req.runID, actx, errs.Wrap(errs.KindStructuredParseError, verr, "structured output failed to validate after %d attempts", structuredRetries+1))
				}
				structuredRetries++
				actx.RollbackTo(priorLen)
				actx.Append(model.Message{Role: model.RoleSystem, Parts: []model.Part{model.TextPart{
					Text: "Your previous response did not satisfy the required output schema: " + verr.Error() + ". Respond again with JSON matching the schema exactly.",
				}}})
				if turn >= maxTurns {
					return e.finish(runCtx, req.runID, actx, errs.New(errs.KindMaxTurnsExceeded, "agent %q exceeded max turns (%d) while retrying structured output", def.Name, maxTurns))
				}
				continue
			}
			return e.finishWithOutput(runCtx, def, req.runID, actx, summary.Text, final)
		}

		return e.finishWithOutput(runCtx, def, req.runID, actx, summary.Text, nil)
	}
}

// llmTurn performs one streamed LLM_CALL, applying the retry schedule to
// retryable transport errors (§7).
func (e *Engine) llmTurn(ctx context.Context, req *model.Request, ev streamparse.Events, structured bool) (streamparse.Summary, error) {
	return withRetry(ctx, e.opts.Retry, func(ctx context.Context) (streamparse.Summary, error) {
		streamer, err := e.opts.Client.Stream(ctx, req)
		if err != nil {
			return streamparse.Summary{}, classifyTransportErr(err)
		}
		return streamparse.ConsumeStream(ctx, streamer, ev, structured)
	})
}

func classifyTransportErr(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*errs.Error); ok {
		return e
	}
	return errs.Wrap(errs.KindLLMTransportError, err, "llm transport call failed")
}

// emit forwards a RunEvent to the configured Sink, never blocking the loop.
func (e *Engine) emit(ctx context.Context, name, runID string, fields map[string]any) {
	e.opts.Sink.Emit(ctx, telemetry.RunEvent{Name: name, RunID: runID, Fields: fields})
}

func (e *Engine) runInputGuard(ctx context.Context, def *agentdef.Definition, input string) (guardrail.Outcome, error) {
	if def.InputGuardrails == nil {
		return guardrail.Outcome{Text: input}, nil
	}
	return def.InputGuardrails.Run(ctx, input)
}

func (e *Engine) runOutputGuard(ctx context.Context, def *agentdef.Definition, text string) (guardrail.Outcome, error) {
	if def.OutputGuardrails == nil {
		return guardrail.Outcome{Text: text}, nil
	}
	return def.OutputGuardrails.Run(ctx, text)
}

// finishWithOutput runs the OUTPUT_GUARD stage (§4.6.1 step 6) over text and
// produces the final Result.
func (e *Engine) finishWithOutput(ctx context.Context, def *agentdef.Definition, runID string, actx *agentctx.Context, text string, parsed json.RawMessage) (*Result, error) {
	outcome, err := e.runOutputGuard(ctx, def, text)
	if err != nil {
		return e.finish(ctx, runID, actx, err)
	}
	if outcome.Rejected {
		e.emit(ctx, telemetry.EventGuardrailReject, runID, map[string]any{"guardrail": outcome.RejectedBy, "reason": outcome.Reason, "stage": "output"})
		return e.finish(ctx, runID, actx, errs.New(errs.KindOutputGuardrailReject, "output rejected by guardrail %q: %s", outcome.RejectedBy, outcome.Reason))
	}
	e.emit(ctx, telemetry.EventRunEnd, runID, map[string]any{"status": StatusOK})
	if e.opts.SnapshotStore != nil {
		_ = e.opts.SnapshotStore.Delete(ctx, runID)
	}
	return &Result{RunID: runID, Status: StatusOK, Output: outcome.Text, Parsed: parsed, Context: actx, TurnCount: actx.TurnCount()}, nil
}

// finish builds the terminal Result for a run given err (nil on success, an
// *errs.Error otherwise), emitting run_end. The (*Result, error) return
// idiom mirrors §7: the engine itself never returns a bare error for
// in-band run outcomes, only for configuration problems caught before a run
// starts; finish's own return's error slot is always nil so callers can
// `return e.finish(...)` directly from run.
func (e *Engine) finish(ctx context.Context, runID string, actx *agentctx.Context, err error) (*Result, error) {
	if e.opts.SnapshotStore != nil {
		_ = e.opts.SnapshotStore.Delete(ctx, runID)
	}
	if err == nil {
		e.emit(ctx, telemetry.EventRunEnd, runID, map[string]any{"status": StatusOK})
		return &Result{RunID: runID, Status: StatusOK, Context: actx}, nil
	}
	e.emit(ctx, telemetry.EventRunEnd, runID, map[string]any{"status": StatusError})
	ee, _ := err.(*errs.Error)
	if ee == nil {
		ee = errs.Wrap(errs.KindLLMTransportError, err, "run failed")
	}
	var turnCount int
	if actx != nil {
		turnCount = actx.TurnCount()
	}
	return &Result{RunID: runID, Status: StatusError, Error: ee, Context: actx, TurnCount: turnCount}, nil
}

func (e *Engine) finishCanceled(ctx context.Context, runID string, actx *agentctx.Context) (*Result, error) {
	e.emit(ctx, telemetry.EventRunEnd, runID, map[string]any{"status": StatusError, "reason": "canceled"})
	if e.opts.SnapshotStore != nil {
		_ = e.opts.SnapshotStore.Delete(context.Background(), runID)
	}
	return &Result{
		RunID:     runID,
		Status:    StatusError,
		Error:     errs.New(errs.KindCanceled, "run %s canceled", runID),
		Context:   actx,
		TurnCount: actx.TurnCount(),
	}, nil
}

// capToolCalls truncates calls to at most limit entries, logging a warning
// for any dropped beyond the budget (§5's max_tool_calls_per_batch). The
// taxonomy has no dedicated error kind for this case (§7 lists 15 kinds,
// none named for a batch-size overrun), so rather than invent one outside
// that closed set, an over-budget batch degrades to "serve the first N"
// with a visible log line instead of failing the run outright.
func capToolCalls(calls []model.ToolCallPart, limit int, logger telemetry.Logger, ctx context.Context) []model.ToolCallPart {
	if limit <= 0 || len(calls) <= limit {
		return calls
	}
	logger.Warn(ctx, "tool call batch exceeds max_tool_calls_per_batch, dropping excess calls", "batch_size", len(calls), "limit", limit)
	return calls[:limit]
}

func assistantToolCallMessage(text string, calls []model.ToolCallPart) model.Message {
	parts := make([]model.Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, model.TextPart{Text: text})
	}
	for _, c := range calls {
		parts = append(parts, c)
	}
	return model.Message{Role: model.RoleAssistant, Parts: parts}
}

func toPlanexecCalls(calls []model.ToolCallPart) []planexec.ToolCall {
	out := make([]planexec.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, planexec.ToolCall{CallID: c.CallID, Name: c.Name, Arguments: c.Arguments})
	}
	return out
}

func anyRequiresConfirmation(def *agentdef.Definition, calls []model.ToolCallPart) bool {
	if def.Registry == nil {
		return false
	}
	for _, c := range calls {
		if decl, ok := def.Registry.Lookup(c.Name); ok && decl.RequiresConfirmation {
			return true
		}
	}
	return false
}

// executeBatch runs calls through a fresh planexec.Executor built from
// def's declared handlers plus synthetic sub-agent tools (§4.5). A fresh
// batch reaches here only when none of its calls requires confirmation, so
// run passes no options; the resume path passes a Confirmer for its
// caller-approved calls.
func (e *Engine) executeBatch(ctx context.Context, def *agentdef.Definition, actx *agentctx.Context, depth int, calls []planexec.ToolCall, opts ...planexec.Option) ([]planexec.ToolResult, error) {
	handlers := e.buildHandlers(ctx, def, actx, depth)
	executor := planexec.NewExecutor(def.Registry, handlers, opts...)
	return executor.Execute(ctx, calls)
}

func appendToolResults(actx *agentctx.Context, results []planexec.ToolResult) {
	for _, r := range results {
		actx.Append(model.Message{Role: model.RoleTool, Parts: []model.Part{model.ToolResultPart{
			CallID:  r.CallID,
			Status:  model.ToolResultStatus(r.Status),
			Payload: r.Payload,
			Error:   r.Error,
		}}})
	}
}

// buildPauseSnapshot captures the confirmation-gated batch (§4.7).
func (e *Engine) buildPauseSnapshot(def *agentdef.Definition, runID string, actx *agentctx.Context, calls []model.ToolCallPart, partial map[string]planexec.ToolResult) *snapshot.Snapshot {
	pending := make([]snapshot.PendingCall, 0, len(calls))
	for _, c := range calls {
		pending = append(pending, snapshot.PendingCall{CallID: c.CallID, ToolName: c.Name, Arguments: c.Arguments})
	}
	return &snapshot.Snapshot{
		Version:        snapshot.Version,
		RunID:          runID,
		AgentID:        def.Name,
		Context:        actx.Messages(),
		PendingBatch:   pending,
		PartialResults: partial,
		Phase:          snapshot.PhasePaused,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		EngineVersion:  "v1",
	}
}

// settleResumedBatch executes the approved subset of a resumed pending
// batch and synthesizes skipped/error results for the rejected subset
// (§4.7's approve/reject/resume protocol).
func (e *Engine) settleResumedBatch(ctx context.Context, def *agentdef.Definition, actx *agentctx.Context, depth int, pending []snapshot.PendingCall) ([]planexec.ToolResult, error) {
	var toRun []planexec.ToolCall
	rejected := make(map[string]string)
	for _, p := range pending {
		if p.Decision == nil {
			return nil, errs.New(errs.KindConfirmationMissing, "call %q has no recorded decision", p.CallID)
		}
		if !p.Decision.Approved {
			rejected[p.CallID] = p.Decision.Note
			continue
		}
		toRun = append(toRun, planexec.ToolCall{CallID: p.CallID, Name: p.ToolName, Arguments: p.Arguments})
	}

	// Every call in toRun carries an approve decision, so the executor's
	// per-call confirmation check is answered with that approval.
	approved := planexec.WithConfirmer(planexec.ConfirmerFunc(func(context.Context, planexec.ToolCall) (bool, error) {
		return true, nil
	}))
	results, err := e.executeBatch(ctx, def, actx, depth, toRun, approved)
	if err != nil {
		return nil, err
	}

	out := make([]planexec.ToolResult, 0, len(pending))
	for _, p := range pending {
		if note, ok := rejected[p.CallID]; ok {
			out = append(out, planexec.ToolResult{CallID: p.CallID, Status: planexec.StatusSkipped, Error: "rejected by caller: " + note})
			continue
		}
		for _, r := range results {
			if r.CallID == p.CallID {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

// detectHandoff inspects calls for the handoff_to_<target> convention
// (§4.6.3), returning the first match's target Definition and the
// transferred-context payload, which is that handoff call's own arguments.
// The full current Context travels separately as Result.HandoffContext.
func detectHandoff(def *agentdef.Definition, calls []model.ToolCallPart) (*agentdef.Definition, json.RawMessage, bool) {
	for _, c := range calls {
		if target, ok := isHandoffTool(def, c.Name); ok {
			return target, c.Arguments, true
		}
	}
	return nil, nil, false
}
