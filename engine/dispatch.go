package engine

import (
	"context"
	"encoding/json"

	"github.com/agentcore/runtime/agentctx"
	"github.com/agentcore/runtime/agentdef"
	"github.com/agentcore/runtime/errs"
	"github.com/agentcore/runtime/planexec"
	"github.com/agentcore/runtime/streamparse"
)

// buildHandlers adapts a Definition's declared tool Handlers, plus the
// synthetic invoke_<snake_name> sub-agent tools, into the map planexec.
// Executor dispatches against. Handoff pseudo-tools are deliberately absent:
// a handoff ends the loop before any tool in its batch executes (§4.6.3), so
// it never reaches the executor.
func (e *Engine) buildHandlers(ctx context.Context, def *agentdef.Definition, actx *agentctx.Context, depth int) map[string]planexec.Handler {
	handlers := make(map[string]planexec.Handler)
	if def.Registry != nil {
		for _, decl := range def.Registry.All() {
			if decl.Handler == nil {
				continue
			}
			h := decl.Handler
			handlers[decl.Name] = func(ctx context.Context, call planexec.ToolCall) (json.RawMessage, error) {
				return h(ctx, call.Name, call.Arguments)
			}
		}
	}
	for _, sub := range def.SubAgents {
		sub := sub
		handlers[subAgentToolName(sub.Agent.Name)] = e.subAgentHandler(sub, actx, depth)
	}
	return handlers
}

// subAgentInput is the conventional argument shape for an invoke_<name>
// tool call: {"input": "..."}. A call whose arguments don't match this
// shape falls back to using the raw arguments JSON as the sub-agent's input
// text.
type subAgentInput struct {
	Input string `json:"input"`
}

// subAgentHandler returns a planexec.Handler that runs sub as a nested
// engine invocation (§4.6.3), bounded by opts.MaxSubAgentDepth.
func (e *Engine) subAgentHandler(sub agentdef.SubAgentDecl, parent *agentctx.Context, depth int) planexec.Handler {
	return func(ctx context.Context, call planexec.ToolCall) (json.RawMessage, error) {
		if depth+1 > e.opts.MaxSubAgentDepth {
			return nil, errs.New(errs.KindSubAgentDepthExceeded, "sub-agent %q exceeds max depth %d", sub.Agent.Name, e.opts.MaxSubAgentDepth)
		}
		var in subAgentInput
		input := string(call.Arguments)
		if json.Unmarshal(call.Arguments, &in) == nil && in.Input != "" {
			input = in.Input
		}

		childCtx := parent
		if !sub.SharedContext {
			childCtx = parent.Fork()
		}

		res, err := e.run(ctx, runRequest{
			def:    sub.Agent,
			input:  input,
			actx:   childCtx,
			runID:  newRunID(),
			events: streamparse.NoopEvents{},
			depth:  depth + 1,
		})
		if err != nil {
			return nil, err
		}
		switch res.Status {
		case StatusOK:
			if len(res.Parsed) > 0 {
				return res.Parsed, nil
			}
			return json.Marshal(map[string]string{"output": res.Output})
		default:
			return nil, errs.New(errs.KindToolExecutionError, "sub-agent %q ended with status %q", sub.Agent.Name, res.Status)
		}
	}
}
