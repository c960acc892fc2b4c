// Package planexec implements the Tool Plan Executor (C5): it takes one
// LLM-requested batch of tool calls, orders them into dependency waves,
// resolves $ref:call_id.json_pointer references between calls, and runs
// each wave's calls concurrently (§4.5).
package planexec

import (
	"context"
	"encoding/json"
)

// ToolCall is one call requested by the model within a single turn.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments json.RawMessage
	// DependsOn lists the CallIDs this call's Arguments reference via
	// $ref:call_id.pointer, populated by BuildWaves.
	DependsOn []string
}

// ErrorPolicy controls how a wave's execution reacts to one call failing.
type ErrorPolicy string

const (
	// Isolate lets sibling calls in the same wave continue; the failed
	// call's result carries an error payload and calls depending on it get
	// a StatusSkipped result naming the missing dependency. This is the
	// default (§4.5).
	Isolate ErrorPolicy = "isolate"
	// FailFast cancels the remaining batch as soon as any call fails.
	FailFast ErrorPolicy = "fail_fast"
	// ContinueWithErrorPayload behaves like Isolate (dependents of a failed
	// call are still skipped), except that a call whose $ref markers fail
	// to resolve runs with its arguments left unresolved instead of
	// failing.
	ContinueWithErrorPayload ErrorPolicy = "continue_with_error_payload"
)

// ToolResult is the outcome of running one ToolCall.
type ToolResult struct {
	CallID  string
	Status  ToolResultStatus
	Payload json.RawMessage
	Error   string
}

// ToolResultStatus classifies a ToolResult.
type ToolResultStatus string

const (
	StatusSuccess ToolResultStatus = "success"
	StatusError   ToolResultStatus = "error"
	StatusSkipped ToolResultStatus = "skipped"
)

// Handler invokes the named tool with resolved arguments and returns its
// raw JSON result payload.
type Handler func(ctx context.Context, call ToolCall) (json.RawMessage, error)
