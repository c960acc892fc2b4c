package planexec

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/agentcore/runtime/toolregistry"
)

func TestExecutorRunsDependentCallsInOrder(t *testing.T) {
	registry := toolregistry.New(nil)
	_ = registry.Declare(toolregistry.Declaration{Name: "fetch", Category: toolregistry.Eager})
	_ = registry.Declare(toolregistry.Declaration{Name: "summarize", Category: toolregistry.Eager})

	handlers := map[string]Handler{
		"fetch": func(_ context.Context, call ToolCall) (json.RawMessage, error) {
			return json.RawMessage(`{"text": "fetched content"}`), nil
		},
		"summarize": func(_ context.Context, call ToolCall) (json.RawMessage, error) {
			var args struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				return nil, err
			}
			return json.RawMessage(`{"summary": "` + args.Text + `"}`), nil
		},
	}
	executor := NewExecutor(registry, handlers)

	calls := []ToolCall{
		{CallID: "b", Name: "summarize", Arguments: json.RawMessage(`{"text": "$ref:a.text"}`)},
		{CallID: "a", Name: "fetch", Arguments: json.RawMessage(`{}`)},
	}
	results, err := executor.Execute(context.Background(), calls)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0].CallID != "b" || results[1].CallID != "a" {
		t.Fatalf("expected results in original call order [b,a], got %+v", results)
	}
	if results[0].Status != StatusSuccess {
		t.Fatalf("expected b to succeed, got %+v", results[0])
	}
	var summary struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(results[0].Payload, &summary); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if summary.Summary != "fetched content" {
		t.Fatalf("expected resolved ref to carry fetched content, got %q", summary.Summary)
	}
}

// TestExecutorParallelPlanWithRefs is scenario S2: get_weather(Tokyo) and
// get_weather(London) have no dependency on each other and must share a
// wave, while compare(a=$ref:c1, b=$ref:c2) depends on both and must run in
// a later wave with both refs resolved. Exactly three results come back, in
// the original call order c1, c2, c3.
func TestExecutorParallelPlanWithRefs(t *testing.T) {
	registry := toolregistry.New(nil)
	_ = registry.Declare(toolregistry.Declaration{Name: "get_weather", Category: toolregistry.Eager})
	_ = registry.Declare(toolregistry.Declaration{Name: "compare", Category: toolregistry.Eager})

	var mu sync.Mutex
	var waveMembership []string

	handlers := map[string]Handler{
		"get_weather": func(_ context.Context, call ToolCall) (json.RawMessage, error) {
			mu.Lock()
			waveMembership = append(waveMembership, call.CallID)
			mu.Unlock()
			var args struct {
				City string `json:"city"`
			}
			_ = json.Unmarshal(call.Arguments, &args)
			return json.RawMessage(`{"city":"` + args.City + `","report":"25C sunny"}`), nil
		},
		"compare": func(_ context.Context, call ToolCall) (json.RawMessage, error) {
			var args struct {
				A json.RawMessage `json:"a"`
				B json.RawMessage `json:"b"`
			}
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				return nil, err
			}
			return json.RawMessage(`{"a":` + string(args.A) + `,"b":` + string(args.B) + `}`), nil
		},
	}
	executor := NewExecutor(registry, handlers)

	calls := []ToolCall{
		{CallID: "c1", Name: "get_weather", Arguments: json.RawMessage(`{"city":"Tokyo"}`)},
		{CallID: "c2", Name: "get_weather", Arguments: json.RawMessage(`{"city":"London"}`)},
		{CallID: "c3", Name: "compare", Arguments: json.RawMessage(`{"a":"$ref:c1","b":"$ref:c2"}`)},
	}
	results, err := executor.Execute(context.Background(), calls)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected exactly 3 results, got %d", len(results))
	}
	if results[0].CallID != "c1" || results[1].CallID != "c2" || results[2].CallID != "c3" {
		t.Fatalf("expected results in order c1,c2,c3, got %+v", results)
	}
	for _, r := range results {
		if r.Status != StatusSuccess {
			t.Fatalf("expected all calls to succeed, got %+v", r)
		}
	}
	if len(waveMembership) != 2 {
		t.Fatalf("expected c1 and c2 to run in the same wave before c3, got %+v", waveMembership)
	}
	var compared struct {
		A struct {
			City   string `json:"city"`
			Report string `json:"report"`
		} `json:"a"`
		B struct {
			City   string `json:"city"`
			Report string `json:"report"`
		} `json:"b"`
	}
	if err := json.Unmarshal(results[2].Payload, &compared); err != nil {
		t.Fatalf("invalid compare payload: %v", err)
	}
	if compared.A.City != "Tokyo" || compared.B.City != "London" {
		t.Fatalf("expected compare to receive resolved refs for Tokyo and London, got %+v", compared)
	}
}

func TestExecutorRequiresConfirmation(t *testing.T) {
	registry := toolregistry.New(nil)
	_ = registry.Declare(toolregistry.Declaration{Name: "delete_file", Category: toolregistry.Eager, RequiresConfirmation: true})

	handlers := map[string]Handler{
		"delete_file": func(_ context.Context, call ToolCall) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		},
	}
	executor := NewExecutor(registry, handlers)
	calls := []ToolCall{{CallID: "a", Name: "delete_file", Arguments: json.RawMessage(`{}`)}}

	_, err := executor.Execute(context.Background(), calls)
	if err == nil {
		t.Fatalf("expected confirmation-missing error without a Confirmer")
	}
}

func TestExecutorConfirmerApproves(t *testing.T) {
	registry := toolregistry.New(nil)
	_ = registry.Declare(toolregistry.Declaration{Name: "delete_file", Category: toolregistry.Eager, RequiresConfirmation: true})

	handlers := map[string]Handler{
		"delete_file": func(_ context.Context, call ToolCall) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		},
	}
	executor := NewExecutor(registry, handlers, WithConfirmer(ConfirmerFunc(func(_ context.Context, _ ToolCall) (bool, error) {
		return true, nil
	})))
	calls := []ToolCall{{CallID: "a", Name: "delete_file", Arguments: json.RawMessage(`{}`)}}

	results, err := executor.Execute(context.Background(), calls)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Status != StatusSuccess {
		t.Fatalf("expected success, got %+v", results[0])
	}
}
