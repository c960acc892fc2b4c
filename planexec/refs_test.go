package planexec

import (
	"encoding/json"
	"testing"
)

func TestResolveRefsWholeValue(t *testing.T) {
	results := map[string]json.RawMessage{
		"a": json.RawMessage(`{"text": "hello world", "count": 3}`),
	}
	resolved, err := ResolveRefs(json.RawMessage(`{"input": "$ref:a.text"}`), results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal(resolved, &out); err != nil {
		t.Fatalf("resolved not valid JSON: %v", err)
	}
	if out.Input != "hello world" {
		t.Fatalf("expected resolved input = hello world, got %q", out.Input)
	}
}

func TestResolveRefsArrayIndex(t *testing.T) {
	results := map[string]json.RawMessage{
		"a": json.RawMessage(`{"items": [{"id": 1}, {"id": 2}]}`),
	}
	resolved, err := ResolveRefs(json.RawMessage(`{"picked": "$ref:a.items[1].id"}`), results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		Picked float64 `json:"picked"`
	}
	if err := json.Unmarshal(resolved, &out); err != nil {
		t.Fatalf("resolved not valid JSON: %v", err)
	}
	if out.Picked != 2 {
		t.Fatalf("expected picked = 2, got %v", out.Picked)
	}
}

func TestResolveRefsMissingCallIsError(t *testing.T) {
	_, err := ResolveRefs(json.RawMessage(`{"input": "$ref:missing.text"}`), map[string]json.RawMessage{})
	if err == nil {
		t.Fatalf("expected error for unresolved reference")
	}
}

func TestResolveRefsEmbeddedInLargerString(t *testing.T) {
	results := map[string]json.RawMessage{
		"a": json.RawMessage(`{"name": "Ada"}`),
	}
	resolved, err := ResolveRefs(json.RawMessage(`{"greeting": "Hello, $ref:a.name!"}`), results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		Greeting string `json:"greeting"`
	}
	if err := json.Unmarshal(resolved, &out); err != nil {
		t.Fatalf("resolved not valid JSON: %v", err)
	}
	if out.Greeting != "Hello, Ada!" {
		t.Fatalf("unexpected greeting: %q", out.Greeting)
	}
}
