package planexec

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentcore/runtime/errs"
	"github.com/agentcore/runtime/toolregistry"
)

// Confirmer decides whether a call to a tool that requires confirmation may
// proceed. It is consulted once per call; returning false makes Execute
// return an errs.KindConfirmationMissing error without starting that call
// or anything after it.
type Confirmer interface {
	Confirm(ctx context.Context, call ToolCall) (approved bool, err error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, call ToolCall) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmerFunc) Confirm(ctx context.Context, call ToolCall) (bool, error) { return f(ctx, call) }

// Executor runs one tool call batch to completion, wave by wave, resolving
// $ref markers between waves and dispatching to registered tool handlers.
type Executor struct {
	registry  *toolregistry.Registry
	handlers  map[string]Handler
	policy    ErrorPolicy
	confirmer Confirmer
}

// Option configures an Executor.
type Option func(*Executor)

// WithErrorPolicy overrides the default Isolate error policy.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(e *Executor) { e.policy = p }
}

// WithConfirmer installs a Confirmer consulted before any tool marked
// RequiresConfirmation runs. Without one, every such call is treated as
// unapproved and the batch halts with errs.KindConfirmationMissing.
func WithConfirmer(c Confirmer) Option {
	return func(e *Executor) { e.confirmer = c }
}

// NewExecutor returns an Executor dispatching calls to handlers, keyed by
// tool name, consulting registry for each tool's RequiresConfirmation flag.
func NewExecutor(registry *toolregistry.Registry, handlers map[string]Handler, opts ...Option) *Executor {
	e := &Executor{registry: registry, handlers: handlers, policy: Isolate}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs calls to completion and returns one ToolResult per call, in
// the same order calls were given (§4.5's "result order matches call_id
// order" invariant), regardless of which wave or goroutine produced it.
func (e *Executor) Execute(ctx context.Context, calls []ToolCall) ([]ToolResult, error) {
	waves, err := BuildWaves(calls)
	if err != nil {
		return nil, err
	}

	resultsByID := make(map[string]ToolResult, len(calls))
	payloadsByID := make(map[string]json.RawMessage, len(calls))
	var mu sync.Mutex

	for _, wave := range waves {
		g, gctx := errgroup.WithContext(ctx)
		for _, call := range wave {
			call := call
			if needsConfirmation(e.registry, call.Name) {
				approved, err := e.confirm(ctx, call)
				if err != nil {
					return nil, err
				}
				if !approved {
					return nil, errs.New(errs.KindConfirmationMissing, "tool call %q (%s) requires confirmation before executing", call.CallID, call.Name)
				}
			}
			g.Go(func() error {
				res := e.runOne(gctx, call, payloadsByID, &mu)
				mu.Lock()
				resultsByID[call.CallID] = res
				if res.Status == StatusSuccess {
					payloadsByID[call.CallID] = res.Payload
				}
				mu.Unlock()
				if res.Status == StatusError && e.policy == FailFast {
					return errs.New(errs.KindToolExecutionError, "tool call %q (%s) failed: %s", call.CallID, call.Name, res.Error)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return orderedResults(calls, resultsByID), err
		}
	}

	return orderedResults(calls, resultsByID), nil
}

func (e *Executor) confirm(ctx context.Context, call ToolCall) (bool, error) {
	if e.confirmer == nil {
		return false, nil
	}
	return e.confirmer.Confirm(ctx, call)
}

func needsConfirmation(registry *toolregistry.Registry, toolName string) bool {
	if registry == nil {
		return false
	}
	decl, ok := registry.Lookup(toolName)
	return ok && decl.RequiresConfirmation
}

func (e *Executor) runOne(ctx context.Context, call ToolCall, payloadsByID map[string]json.RawMessage, mu *sync.Mutex) ToolResult {
	mu.Lock()
	snapshot := make(map[string]json.RawMessage, len(payloadsByID))
	for k, v := range payloadsByID {
		snapshot[k] = v
	}
	mu.Unlock()

	for _, dep := range call.DependsOn {
		if _, ok := snapshot[dep]; !ok {
			return ToolResult{CallID: call.CallID, Status: StatusSkipped, Error: "dependency " + dep + " did not produce a result"}
		}
	}

	resolvedArgs, err := ResolveRefs(call.Arguments, snapshot)
	if err != nil {
		if e.policy == ContinueWithErrorPayload {
			resolvedArgs = call.Arguments
		} else {
			return ToolResult{CallID: call.CallID, Status: StatusError, Error: err.Error()}
		}
	}

	if e.registry != nil {
		if err := validateArgs(e.registry, call.Name, resolvedArgs); err != nil {
			return ToolResult{CallID: call.CallID, Status: StatusError, Error: err.Error()}
		}
	}

	handler, ok := e.handlers[call.Name]
	if !ok {
		return ToolResult{CallID: call.CallID, Status: StatusError, Error: "no handler registered for tool " + call.Name}
	}

	payload, err := handler(ctx, ToolCall{CallID: call.CallID, Name: call.Name, Arguments: resolvedArgs, DependsOn: call.DependsOn})
	if err != nil {
		return ToolResult{CallID: call.CallID, Status: StatusError, Error: err.Error()}
	}
	return ToolResult{CallID: call.CallID, Status: StatusSuccess, Payload: payload}
}

func orderedResults(calls []ToolCall, byID map[string]ToolResult) []ToolResult {
	out := make([]ToolResult, 0, len(calls))
	for _, c := range calls {
		if r, ok := byID[c.CallID]; ok {
			out = append(out, r)
		} else {
			out = append(out, ToolResult{CallID: c.CallID, Status: StatusSkipped, Error: "not executed"})
		}
	}
	return out
}
