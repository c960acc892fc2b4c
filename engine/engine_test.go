package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore/runtime/agentdef"
	"github.com/agentcore/runtime/errs"
	"github.com/agentcore/runtime/guardrail"
	"github.com/agentcore/runtime/model"
	"github.com/agentcore/runtime/snapshot/inmemstore"
	"github.com/agentcore/runtime/toolregistry"
)

// scriptedStreamer replays a fixed slice of chunks, mimicking fakeStreamer in
// package streamparse's test suite.
type scriptedStreamer struct {
	chunks []model.Chunk
	idx    int
}

func (s *scriptedStreamer) Recv() (model.Chunk, error) {
	c := s.chunks[s.idx]
	s.idx++
	return c, nil
}

func (s *scriptedStreamer) Close() error { return nil }

// scriptedClient returns one scriptedStreamer per Stream call, in order,
// looping on the last script once exhausted so a multi-turn test doesn't
// need to predict exactly how many LLM calls it will take.
type scriptedClient struct {
	scripts [][]model.Chunk
	calls   int
}

func (c *scriptedClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return nil, nil
}

func (c *scriptedClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	i := c.calls
	if i >= len(c.scripts) {
		i = len(c.scripts) - 1
	}
	c.calls++
	return &scriptedStreamer{chunks: c.scripts[i]}, nil
}

func textScript(text string) []model.Chunk {
	return []model.Chunk{
		{Type: model.ChunkTypeTextDelta, TextDelta: text},
		{Type: model.ChunkTypeResponseDone, StopReason: "stop"},
	}
}

func toolCallScript(call model.ToolCallPart) []model.Chunk {
	return []model.Chunk{
		{Type: model.ChunkTypeToolCallDone, ToolCall: &call},
		{Type: model.ChunkTypeResponseDone, StopReason: "tool_calls"},
	}
}

func simpleDef(t *testing.T, client model.Client) *agentdef.Definition {
	t.Helper()
	return &agentdef.Definition{
		Name:     "support-agent",
		ModelID:  "test-model",
		MaxTurns: 5,
		Registry: toolregistry.New(nil),
	}
}

func newTestEngine(client model.Client) *Engine {
	return New(Options{Client: client, SnapshotStore: inmemstore.New()})
}

func TestInteractPlainTextTurn(t *testing.T) {
	client := &scriptedClient{scripts: [][]model.Chunk{textScript("hello there")}}
	e := newTestEngine(client)
	def := simpleDef(t, client)

	res, err := e.Interact(context.Background(), def, "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("expected StatusOK, got %v (err=%v)", res.Status, res.Error)
	}
	if res.Output != "hello there" {
		t.Fatalf("unexpected output: %q", res.Output)
	}
	if res.Context.Len() != 2 {
		t.Fatalf("expected 2 messages (user + assistant), got %d", res.Context.Len())
	}
}

func TestInteractSingleToolThenText(t *testing.T) {
	registry := toolregistry.New(nil)
	if err := registry.Declare(toolregistry.Declaration{
		Name:     "lookup",
		Category: toolregistry.Eager,
		Handler: func(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"found":true}`), nil
		},
	}); err != nil {
		t.Fatalf("declare: %v", err)
	}

	client := &scriptedClient{scripts: [][]model.Chunk{
		toolCallScript(model.ToolCallPart{CallID: "c1", Name: "lookup", Arguments: json.RawMessage(`{}`)}),
		textScript("done"),
	}}
	e := newTestEngine(client)
	def := &agentdef.Definition{Name: "a", ModelID: "m", MaxTurns: 5, Registry: registry}

	res, err := e.Interact(context.Background(), def, "find it", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusOK || res.Output != "done" {
		t.Fatalf("unexpected result: %+v", res)
	}
	msgs := res.Context.Messages()
	var sawToolResult bool
	for _, m := range msgs {
		for _, p := range m.Parts {
			if tr, ok := p.(model.ToolResultPart); ok {
				sawToolResult = true
				if tr.Status != model.ToolResultSuccess {
					t.Fatalf("expected success tool result, got %+v", tr)
				}
			}
		}
	}
	if !sawToolResult {
		t.Fatalf("expected a tool result message in context, got %+v", msgs)
	}
}

func TestInteractConfirmationRequiredPauses(t *testing.T) {
	registry := toolregistry.New(nil)
	if err := registry.Declare(toolregistry.Declaration{
		Name:                 "send_email",
		Category:             toolregistry.Eager,
		RequiresConfirmation: true,
		Handler: func(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"sent":true}`), nil
		},
	}); err != nil {
		t.Fatalf("declare: %v", err)
	}

	client := &scriptedClient{scripts: [][]model.Chunk{
		toolCallScript(model.ToolCallPart{CallID: "c1", Name: "send_email", Arguments: json.RawMessage(`{"to":"team"}`)}),
	}}
	e := newTestEngine(client)
	def := &agentdef.Definition{Name: "a", ModelID: "m", MaxTurns: 5, Registry: registry}

	res, err := e.Interact(context.Background(), def, "email the team", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusPaused {
		t.Fatalf("expected StatusPaused, got %v", res.Status)
	}
	if res.Snapshot == nil || len(res.Snapshot.PendingBatch) != 1 {
		t.Fatalf("expected one pending call in snapshot, got %+v", res.Snapshot)
	}

	if err := res.Snapshot.Approve("c1", "looks fine"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	client.scripts = append(client.scripts, textScript("sent the email"))
	resumed, err := e.Resume(context.Background(), def, res.Snapshot)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != StatusOK || resumed.Output != "sent the email" {
		t.Fatalf("unexpected resumed result: %+v", resumed)
	}
}

// TestResumeWithoutAllDecisionsFailsWithNoSideEffects verifies Universal
// Invariant 6: a paused run whose pending batch contains any
// confirmation-requiring call, resumed without decisions for all such
// calls, fails with confirmation_missing and has no side effects (the tool
// handler must never run, and the snapshot's pending batch is left
// untouched for a later, fully-decided resume).
func TestResumeWithoutAllDecisionsFailsWithNoSideEffects(t *testing.T) {
	var handlerCalls int
	registry := toolregistry.New(nil)
	if err := registry.Declare(toolregistry.Declaration{
		Name:                 "send_email",
		Category:             toolregistry.Eager,
		RequiresConfirmation: true,
		Handler: func(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
			handlerCalls++
			return json.RawMessage(`{"sent":true}`), nil
		},
	}); err != nil {
		t.Fatalf("declare: %v", err)
	}

	client := &scriptedClient{scripts: [][]model.Chunk{
		toolCallScript(model.ToolCallPart{CallID: "c1", Name: "send_email", Arguments: json.RawMessage(`{"to":"team"}`)}),
	}}
	e := newTestEngine(client)
	def := &agentdef.Definition{Name: "a", ModelID: "m", MaxTurns: 5, Registry: registry}

	res, err := e.Interact(context.Background(), def, "email the team", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusPaused {
		t.Fatalf("expected StatusPaused, got %v", res.Status)
	}

	_, resumeErr := e.Resume(context.Background(), def, res.Snapshot)
	if resumeErr == nil {
		t.Fatalf("expected resume without a recorded decision to fail")
	}
	ee, ok := resumeErr.(*errs.Error)
	if !ok || ee.Kind != errs.KindConfirmationMissing {
		t.Fatalf("expected confirmation_missing, got %v", resumeErr)
	}
	if handlerCalls != 0 {
		t.Fatalf("expected the tool handler to never run, got %d calls", handlerCalls)
	}
	if len(res.Snapshot.MissingDecisions()) != 1 || res.Snapshot.MissingDecisions()[0] != "c1" {
		t.Fatalf("expected c1 still undecided, got %+v", res.Snapshot.MissingDecisions())
	}
}

func TestInteractMaxTurnsExceeded(t *testing.T) {
	registry := toolregistry.New(nil)
	if err := registry.Declare(toolregistry.Declaration{
		Name:     "loop_tool",
		Category: toolregistry.Eager,
		Handler: func(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}); err != nil {
		t.Fatalf("declare: %v", err)
	}

	script := toolCallScript(model.ToolCallPart{CallID: "c1", Name: "loop_tool", Arguments: json.RawMessage(`{}`)})
	client := &scriptedClient{scripts: [][]model.Chunk{script, script}}
	e := newTestEngine(client)
	def := &agentdef.Definition{Name: "a", ModelID: "m", MaxTurns: 2, Registry: registry}

	res, err := e.Interact(context.Background(), def, "keep going", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusError {
		t.Fatalf("expected StatusError, got %v", res.Status)
	}
	if res.Error == nil || res.Error.Kind != "max_turns_exceeded" {
		t.Fatalf("expected max_turns_exceeded, got %+v", res.Error)
	}
}

// TestInteractOutputGuardrailRejectsLongText is scenario S4: an output
// guardrail rejects assistant text over 10 characters. "hello world!!" is 13
// characters, so the run must end in status=error,
// kind=output_guardrail_reject with no further turns.
func TestInteractOutputGuardrailRejectsLongText(t *testing.T) {
	client := &scriptedClient{scripts: [][]model.Chunk{textScript("hello world!!")}}
	e := newTestEngine(client)
	def := &agentdef.Definition{
		Name:             "a",
		ModelID:          "m",
		MaxTurns:         3,
		Registry:         toolregistry.New(nil),
		OutputGuardrails: guardrail.NewChain(guardrail.MaxLength{Limit: 10}),
	}

	res, err := e.Interact(context.Background(), def, "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusError {
		t.Fatalf("expected StatusError, got %v", res.Status)
	}
	if res.Error == nil || res.Error.Kind != errs.KindOutputGuardrailReject {
		t.Fatalf("expected output_guardrail_reject, got %+v", res.Error)
	}
	if res.Context.Len() != 2 {
		t.Fatalf("expected user + assistant messages only, got %d", res.Context.Len())
	}
}

func TestInteractOutputGuardrailSkippedWithoutChain(t *testing.T) {
	client := &scriptedClient{scripts: [][]model.Chunk{textScript("fine")}}
	e := newTestEngine(client)
	def := &agentdef.Definition{Name: "a", ModelID: "m", MaxTurns: 3, Registry: toolregistry.New(nil)}

	res, err := e.Interact(context.Background(), def, "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("expected StatusOK without guardrails configured, got %+v", res)
	}
}
