// Package errs defines the closed error taxonomy surfaced by the agent
// runtime core. The engine never panics or unwinds across its public
// surface: every failure mode named in the specification is a typed value
// the caller can switch on via Kind.
package errs

import "fmt"

// Kind enumerates the error taxonomy. Values are stable and may be compared
// with ==; callers should prefer errors.Is/As over string matching.
type Kind string

const (
	KindInputGuardrailReject  Kind = "input_guardrail_reject"
	KindOutputGuardrailReject Kind = "output_guardrail_reject"
	KindMaxTurnsExceeded      Kind = "max_turns_exceeded"
	KindLLMTransportError     Kind = "llm_transport_error"
	KindLLMStreamTimeout      Kind = "llm_stream_timeout"
	KindToolUnknown           Kind = "tool_unknown"
	KindToolBadArgs           Kind = "tool_bad_args"
	KindToolExecutionError    Kind = "tool_execution_error"
	KindToolUnresolvedRef     Kind = "tool_unresolved_ref"
	KindToolCycleDetected     Kind = "tool_cycle_detected"
	KindStructuredParseError  Kind = "structured_parse_error"
	KindSnapshotIncompatible  Kind = "snapshot_incompatible"
	KindCanceled              Kind = "canceled"
	KindSubAgentDepthExceeded Kind = "sub_agent_depth_exceeded"
	KindConfirmationMissing  Kind = "confirmation_missing"
	KindInvalidConfig         Kind = "invalid_config"
)

// Error is the concrete error value returned by the engine and its
// collaborators. It always carries a Kind so callers can branch on failure
// mode without parsing messages.
type Error struct {
	// Kind identifies the failure mode.
	Kind Kind
	// Message is a human-readable description.
	Message string
	// Retryable indicates whether the engine's retry schedule (see
	// package engine) should consider this error for another attempt.
	// Only meaningful for KindLLMTransportError.
	Retryable bool
	// Cause is the underlying error, when one exists.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New constructs an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WrapRetryable is like Wrap but marks the error retryable (only meaningful
// for transport errors, per spec §7's propagation policy).
func WrapRetryable(kind Kind, retryable bool, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause, Retryable: retryable}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, returning
// ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// as walks err's Unwrap chain by hand, without the standard "errors"
// package, and stores the first *Error it finds in target.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
