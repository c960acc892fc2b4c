package model

import (
	"encoding/json"
	"fmt"
)

// partType discriminates the wire encoding of a Part, since Part has no
// exported fields of its own for json to dispatch on.
type partType string

const (
	partTypeText       partType = "text"
	partTypeImage      partType = "image"
	partTypeFile       partType = "file"
	partTypeToolCall   partType = "tool_call"
	partTypeToolResult partType = "tool_result"
	partTypeHandoff    partType = "handoff"
)

// partEnvelope is the closed-world wire shape for any Part: a type tag plus
// every field any variant might carry. Unused fields are omitted via
// omitempty.
type partEnvelope struct {
	Type partType `json:"type"`

	Text string `json:"text,omitempty"`

	Format string `json:"format,omitempty"`
	Bytes  []byte `json:"bytes,omitempty"`
	Name   string `json:"name,omitempty"`

	CallID string `json:"call_id,omitempty"`

	Arguments json.RawMessage `json:"arguments,omitempty"`

	Status  ToolResultStatus `json:"status,omitempty"`
	Payload json.RawMessage  `json:"payload,omitempty"`
	Error   string           `json:"error,omitempty"`

	TargetAgentID      string          `json:"target_agent_id,omitempty"`
	TransferredContext json.RawMessage `json:"transferred_context,omitempty"`
}

func encodePart(p Part) (partEnvelope, error) {
	switch v := p.(type) {
	case TextPart:
		return partEnvelope{Type: partTypeText, Text: v.Text}, nil
	case ImagePart:
		return partEnvelope{Type: partTypeImage, Format: v.Format, Bytes: v.Bytes}, nil
	case FilePart:
		return partEnvelope{Type: partTypeFile, Name: v.Name, Format: v.Format, Bytes: v.Bytes}, nil
	case ToolCallPart:
		return partEnvelope{Type: partTypeToolCall, CallID: v.CallID, Name: v.Name, Arguments: v.Arguments}, nil
	case ToolResultPart:
		return partEnvelope{Type: partTypeToolResult, CallID: v.CallID, Status: v.Status, Payload: v.Payload, Error: v.Error}, nil
	case HandoffPart:
		return partEnvelope{Type: partTypeHandoff, TargetAgentID: v.TargetAgentID, TransferredContext: v.TransferredContext}, nil
	default:
		return partEnvelope{}, fmt.Errorf("model: unknown Part implementation %T", p)
	}
}

func decodePart(e partEnvelope) (Part, error) {
	switch e.Type {
	case partTypeText:
		return TextPart{Text: e.Text}, nil
	case partTypeImage:
		return ImagePart{Format: e.Format, Bytes: e.Bytes}, nil
	case partTypeFile:
		return FilePart{Name: e.Name, Format: e.Format, Bytes: e.Bytes}, nil
	case partTypeToolCall:
		return ToolCallPart{CallID: e.CallID, Name: e.Name, Arguments: e.Arguments}, nil
	case partTypeToolResult:
		return ToolResultPart{CallID: e.CallID, Status: e.Status, Payload: e.Payload, Error: e.Error}, nil
	case partTypeHandoff:
		return HandoffPart{TargetAgentID: e.TargetAgentID, TransferredContext: e.TransferredContext}, nil
	default:
		return nil, fmt.Errorf("model: unknown part type %q", e.Type)
	}
}

type messageWire struct {
	Seq   int              `json:"seq"`
	Role  ConversationRole `json:"role"`
	Parts []partEnvelope   `json:"parts"`
	Meta  map[string]any   `json:"meta,omitempty"`
}

// MarshalJSON implements a closed-world wire encoding for Message, tagging
// each Part with a discriminator so UnmarshalJSON can reconstruct the exact
// concrete type (§6.4's "typed payload" requirement).
func (m Message) MarshalJSON() ([]byte, error) {
	wire := messageWire{Seq: m.Seq, Role: m.Role, Meta: m.Meta}
	for _, p := range m.Parts {
		env, err := encodePart(p)
		if err != nil {
			return nil, err
		}
		wire.Parts = append(wire.Parts, env)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements the inverse of MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Seq = wire.Seq
	m.Role = wire.Role
	m.Meta = wire.Meta
	m.Parts = nil
	for _, env := range wire.Parts {
		p, err := decodePart(env)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, p)
	}
	return nil
}
