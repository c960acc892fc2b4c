package agentctx

import "github.com/agentcore/runtime/model"

// WindowPolicy bounds the view of a Context's transcript handed to payload
// builders (§4.1's window operation). Policies never mutate Context; they
// only compute a view.
type WindowPolicy interface {
	Window(messages []model.Message) []model.Message
}

// SlidingWindow keeps only the most recent N messages.
type SlidingWindow struct {
	N int
}

// Window returns the last N messages (or all of them, when there are fewer
// than N).
func (w SlidingWindow) Window(messages []model.Message) []model.Message {
	if w.N <= 0 || len(messages) <= w.N {
		return messages
	}
	return messages[len(messages)-w.N:]
}

// SummarizedPrefix keeps a synthetic summary message as a stand-in for
// everything older than the most recent N messages. Summarize is invoked
// lazily, only when the transcript actually exceeds N messages.
type SummarizedPrefix struct {
	N         int
	Summarize func(dropped []model.Message) model.Message
}

// Window returns a single summary message (when a Summarize func is
// configured and there is a prefix to collapse) followed by the most recent
// N messages.
func (w SummarizedPrefix) Window(messages []model.Message) []model.Message {
	if w.N <= 0 || len(messages) <= w.N || w.Summarize == nil {
		return messages
	}
	dropped := messages[:len(messages)-w.N]
	recent := messages[len(messages)-w.N:]
	out := make([]model.Message, 0, len(recent)+1)
	out = append(out, w.Summarize(dropped))
	out = append(out, recent...)
	return out
}

// Unbounded returns the full transcript unchanged; it is the default policy
// used when no bound is configured.
type Unbounded struct{}

// Window returns messages unchanged.
func (Unbounded) Window(messages []model.Message) []model.Message { return messages }

// Window applies policy to the Context's current transcript. A nil policy
// defaults to Unbounded.
func (c *Context) Window(policy WindowPolicy) []model.Message {
	msgs := c.Messages()
	if policy == nil {
		return msgs
	}
	return policy.Window(msgs)
}
