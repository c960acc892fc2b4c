// Package streamparse implements the Structured Stream Parser (C4): a
// driver that consumes model.Chunk values off a model.Streamer and
// incrementally completes partial JSON so structured-output callers can
// observe fully-closed top-level keys before the response finishes (§4.4).
package streamparse

import (
	"context"
	"encoding/json"

	"github.com/agentcore/runtime/model"
)

// Events receives callbacks as a stream is consumed, per §4.4's event
// surface: on_text_delta, on_tool_call, on_partial_json, on_parsed_complete,
// on_error. Implementations must return quickly; ConsumeStream does not run
// callbacks concurrently with draining the stream.
type Events interface {
	OnTextDelta(ctx context.Context, delta string)
	OnToolCall(ctx context.Context, call model.ToolCallPart)
	// OnPartialJSON is invoked whenever the completer produces a new
	// projection of fully-closed top-level keys, reflecting the
	// structured-output payload built so far.
	OnPartialJSON(ctx context.Context, partial json.RawMessage)
	OnParsedComplete(ctx context.Context, final json.RawMessage)
	OnError(ctx context.Context, err error)
}

// NoopEvents implements Events with no-op handlers, useful as an embeddable
// base for callers that only care about a subset of callbacks.
type NoopEvents struct{}

func (NoopEvents) OnTextDelta(context.Context, string)              {}
func (NoopEvents) OnToolCall(context.Context, model.ToolCallPart)   {}
func (NoopEvents) OnPartialJSON(context.Context, json.RawMessage)   {}
func (NoopEvents) OnParsedComplete(context.Context, json.RawMessage) {}
func (NoopEvents) OnError(context.Context, error)                   {}

// Summary aggregates the outcome of draining one stream, mirroring the
// shape planners need to build a final Response (§4.4, §4.6.1 step "PARSE").
type Summary struct {
	Text        string
	ToolCalls   []model.ToolCallPart
	Usage       model.TokenUsage
	StopReason  string
	Final       json.RawMessage // set only when a StructuredSchema was in effect and parsing completed
}

// ConsumeStream drains streamer, invoking ev's callbacks as chunks arrive
// and, when structured is true, feeding text deltas through a Completer so
// OnPartialJSON/OnParsedComplete fire as soon as top-level keys close.
func ConsumeStream(ctx context.Context, streamer model.Streamer, ev Events, structured bool) (Summary, error) {
	var summary Summary
	if streamer == nil {
		return summary, nil
	}
	defer streamer.Close()

	var completer *Completer
	if structured {
		completer = NewCompleter()
	}

	for {
		chunk, err := streamer.Recv()
		if err != nil {
			ev.OnError(ctx, err)
			return summary, err
		}
		switch chunk.Type {
		case model.ChunkTypeTextDelta:
			if chunk.TextDelta == "" {
				continue
			}
			summary.Text += chunk.TextDelta
			ev.OnTextDelta(ctx, chunk.TextDelta)
			if completer != nil {
				if partial, changed := completer.Feed(chunk.TextDelta); changed {
					ev.OnPartialJSON(ctx, partial)
				}
			}
		case model.ChunkTypeToolCallDelta:
			// Argument deltas accumulate into the final ToolCallDone chunk;
			// callers needing incremental argument JSON should inspect
			// chunk.ArgsDelta directly via a richer Events implementation.
		case model.ChunkTypeToolCallDone:
			if chunk.ToolCall != nil {
				summary.ToolCalls = append(summary.ToolCalls, *chunk.ToolCall)
				ev.OnToolCall(ctx, *chunk.ToolCall)
			}
		case model.ChunkTypeResponseDone:
			if chunk.UsageDelta != nil {
				summary.Usage = addUsage(summary.Usage, *chunk.UsageDelta)
			}
			summary.StopReason = chunk.StopReason
		case model.ChunkTypeError:
			ev.OnError(ctx, chunk.Err)
			return summary, chunk.Err
		}
		if chunk.Type == model.ChunkTypeResponseDone {
			break
		}
	}

	if completer != nil {
		final, err := completer.Final()
		if err == nil {
			summary.Final = final
			ev.OnParsedComplete(ctx, final)
		}
	}

	return summary, nil
}

func addUsage(a, b model.TokenUsage) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:  a.InputTokens + b.InputTokens,
		OutputTokens: a.OutputTokens + b.OutputTokens,
		TotalTokens:  a.TotalTokens + b.TotalTokens,
	}
}
