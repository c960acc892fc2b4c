// Package snapshot implements the Run Snapshot (C7): a serializable,
// self-describing record of a paused Interaction Engine run, its pending
// confirmation decisions, and the lossless round trip contract of §4.7.
package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/agentcore/runtime/errs"
	"github.com/agentcore/runtime/model"
	"github.com/agentcore/runtime/planexec"
)

// Version is the current engine snapshot format version. Snapshots with an
// older Version are rejected with errs.KindSnapshotIncompatible (§4.7).
const Version = 1

// MinSupportedVersion is the oldest snapshot Version this engine will
// restore.
const MinSupportedVersion = 1

// Phase records the loop phase captured in a snapshot. Only PhasePaused is
// ever persisted; the field exists so the wire format is self-describing.
type Phase string

const PhasePaused Phase = "paused"

// PendingCall is one call from the paused batch, carrying its confirmation
// decision (if any has been recorded yet).
type PendingCall struct {
	CallID    string          `json:"call_id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
	Decision  *Decision       `json:"decision,omitempty"`
}

// Decision records an operator's approve/reject choice for one pending call.
type Decision struct {
	Approved bool   `json:"approved"`
	Note     string `json:"note,omitempty"`
}

// Snapshot is the portable record of a paused run (§4.7, §6.4).
type Snapshot struct {
	Version int `json:"version"`

	// RunID identifies the run this snapshot pauses, so a caller that loads
	// it from a Store (possibly in a different process) can hand it
	// straight to Engine.Resume without tracking the run handle separately.
	RunID string `json:"run_id"`

	AgentID string `json:"agent_id"`

	Context []model.Message `json:"context"`

	PendingBatch []PendingCall `json:"pending_batch"`

	// PartialResults holds results for calls in the paused batch that had
	// already executed before confirmation split it (§4.7).
	PartialResults map[string]planexec.ToolResult `json:"partial_results,omitempty"`

	Phase Phase `json:"phase"`

	CreatedAt string `json:"created_at"` // RFC3339; stamped by the caller, never derived internally

	EngineVersion string `json:"engine_version"`

	// Extra preserves unknown top-level fields encountered at read time, for
	// forward compatibility with newer writers (§6.4).
	Extra map[string]json.RawMessage `json:"-"`
}

// Approve records an approval decision for callID. It is a no-op error if
// callID is not part of the pending batch.
func (s *Snapshot) Approve(callID string, note string) error {
	return s.decide(callID, Decision{Approved: true, Note: note})
}

// Reject records a rejection decision for callID.
func (s *Snapshot) Reject(callID string, note string) error {
	return s.decide(callID, Decision{Approved: false, Note: note})
}

func (s *Snapshot) decide(callID string, d Decision) error {
	for i := range s.PendingBatch {
		if s.PendingBatch[i].CallID == callID {
			dc := d
			s.PendingBatch[i].Decision = &dc
			return nil
		}
	}
	return errs.New(errs.KindInvalidConfig, "snapshot has no pending call %q", callID)
}

// ReadyToResume reports whether every pending call has a recorded decision
// (§4.7's resume precondition, §8 invariant 6).
func (s *Snapshot) ReadyToResume() bool {
	for _, c := range s.PendingBatch {
		if c.Decision == nil {
			return false
		}
	}
	return true
}

// MissingDecisions lists the CallIDs still awaiting a decision.
func (s *Snapshot) MissingDecisions() []string {
	var missing []string
	for _, c := range s.PendingBatch {
		if c.Decision == nil {
			missing = append(missing, c.CallID)
		}
	}
	return missing
}

// Marshal serializes s to the JSON wire format described in §6.4, folding
// Extra back in as top-level passthrough fields.
func (s *Snapshot) Marshal() ([]byte, error) {
	type alias Snapshot
	base, err := json.Marshal((*alias)(s))
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	if len(s.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	for k, v := range s.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Unmarshal parses data into a Snapshot, preserving any unrecognized
// top-level fields in Extra, and rejects a Version older than
// MinSupportedVersion.
func Unmarshal(data []byte) (*Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.KindSnapshotIncompatible, err, "snapshot: invalid JSON")
	}

	var s Snapshot
	type alias Snapshot
	if err := json.Unmarshal(data, (*alias)(&s)); err != nil {
		return nil, errs.Wrap(errs.KindSnapshotIncompatible, err, "snapshot: decode failed")
	}
	if s.Version < MinSupportedVersion {
		return nil, errs.New(errs.KindSnapshotIncompatible, "snapshot version %d is older than minimum supported version %d", s.Version, MinSupportedVersion)
	}

	known := map[string]bool{
		"version": true, "run_id": true, "agent_id": true, "context": true, "pending_batch": true,
		"partial_results": true, "phase": true, "created_at": true, "engine_version": true,
	}
	for k, v := range raw {
		if !known[k] {
			if s.Extra == nil {
				s.Extra = make(map[string]json.RawMessage)
			}
			s.Extra[k] = v
		}
	}
	return &s, nil
}
