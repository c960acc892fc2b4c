package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestMessageJSONRoundTrip(t *testing.T) {
	original := Message{
		Seq:  3,
		Role: RoleAssistant,
		Parts: []Part{
			TextPart{Text: "here you go"},
			ToolCallPart{CallID: "c1", Name: "search", Arguments: json.RawMessage(`{"q":"go"}`)},
			ToolResultPart{CallID: "c1", Status: ToolResultSuccess, Payload: json.RawMessage(`{"ok":true}`)},
			HandoffPart{TargetAgentID: "billing", TransferredContext: json.RawMessage(`{"note":"escalate"}`)},
		},
		Meta: map[string]any{"session": "s1"},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch:\noriginal=%+v\ndecoded=%+v", original, decoded)
	}
}
