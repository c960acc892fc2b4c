package streamparse

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/agentcore/runtime/model"
)

type fakeStreamer struct {
	chunks []model.Chunk
	idx    int
}

func (f *fakeStreamer) Recv() (model.Chunk, error) {
	if f.idx >= len(f.chunks) {
		return model.Chunk{}, io.EOF
	}
	c := f.chunks[f.idx]
	f.idx++
	return c, nil
}

func (f *fakeStreamer) Close() error { return nil }

type recordingEvents struct {
	NoopEvents
	textDeltas []string
	partials   []json.RawMessage
	final      json.RawMessage
}

func (r *recordingEvents) OnTextDelta(_ context.Context, delta string) {
	r.textDeltas = append(r.textDeltas, delta)
}

func (r *recordingEvents) OnPartialJSON(_ context.Context, partial json.RawMessage) {
	r.partials = append(r.partials, partial)
}

func (r *recordingEvents) OnParsedComplete(_ context.Context, final json.RawMessage) {
	r.final = final
}

func TestConsumeStreamStructuredOutput(t *testing.T) {
	streamer := &fakeStreamer{chunks: []model.Chunk{
		{Type: model.ChunkTypeTextDelta, TextDelta: `{"answer": "4`},
		{Type: model.ChunkTypeTextDelta, TextDelta: `2", "confidence": 0.9}`},
		{Type: model.ChunkTypeResponseDone, StopReason: "stop"},
	}}
	ev := &recordingEvents{}

	summary, err := ConsumeStream(context.Background(), streamer, ev, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StopReason != "stop" {
		t.Fatalf("expected stop reason propagated, got %q", summary.StopReason)
	}
	if len(ev.textDeltas) != 2 {
		t.Fatalf("expected 2 text deltas, got %d", len(ev.textDeltas))
	}
	if ev.final == nil {
		t.Fatalf("expected OnParsedComplete to fire")
	}
	var got struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(ev.final, &got); err != nil {
		t.Fatalf("final not valid JSON: %v", err)
	}
	if got.Answer != "42" || got.Confidence != 0.9 {
		t.Fatalf("unexpected final value: %+v", got)
	}
}

func TestConsumeStreamCollectsToolCalls(t *testing.T) {
	call := model.ToolCallPart{CallID: "1", Name: "search", Arguments: json.RawMessage(`{"q":"go"}`)}
	streamer := &fakeStreamer{chunks: []model.Chunk{
		{Type: model.ChunkTypeToolCallDone, ToolCall: &call},
		{Type: model.ChunkTypeResponseDone, StopReason: "tool_calls"},
	}}
	ev := &recordingEvents{}

	summary, err := ConsumeStream(context.Background(), streamer, ev, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.ToolCalls) != 1 || summary.ToolCalls[0].Name != "search" {
		t.Fatalf("unexpected tool calls: %+v", summary.ToolCalls)
	}
}
