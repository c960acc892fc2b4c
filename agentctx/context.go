// Package agentctx implements Context (C1): the per-run state owned
// exclusively by the Interaction Engine for the duration of one run. Context
// is append-only (message history never mutates after creation) and carries
// a typed key/value map for user state plus an optional Memory handle.
package agentctx

import (
	"sync"

	"github.com/agentcore/runtime/memory"
	"github.com/agentcore/runtime/model"
)

// Context is the per-run state described in spec §3.1/§4.1. It is owned by
// exactly one run at a time; concurrent reads are safe, writes are
// single-threaded (performed only by the owning engine loop).
type Context struct {
	mu       sync.RWMutex
	messages []model.Message
	turn     int
	state    map[string]any
	mem      memory.Memory
}

// New constructs an empty Context, optionally bound to a Memory
// collaborator. mem may be nil; memory is only consulted when an explicit
// memory tool is invoked (the core never auto-injects memory, per §4.1).
func New(mem memory.Memory) *Context {
	return &Context{state: make(map[string]any), mem: mem}
}

// Append adds a Message to the transcript, assigning it the next creation
// order index. Append is O(1); no operation mutates a stored message, and
// the only one that removes messages is RollbackTo.
func (c *Context) Append(msg model.Message) model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Seq = len(c.messages)
	c.messages = append(c.messages, msg)
	return msg
}

// Messages returns a snapshot slice of the transcript in insertion order.
// The returned slice is a copy; mutating it does not affect Context.
func (c *Context) Messages() []model.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len reports the number of messages currently in the transcript.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// RollbackTo truncates the transcript to the first n messages, replacing the
// tail atomically. This is the sole documented exception to append-only
// growth (§3.2), used when a reflective retry must discard a failed
// structured-output attempt (§4.6.1 step 4).
func (c *Context) RollbackTo(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > len(c.messages) {
		return
	}
	c.messages = c.messages[:n]
}

// TurnCount returns the current turn counter.
func (c *Context) TurnCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.turn
}

// IncrementTurn advances the turn counter by one and returns the new value.
// Callers (the engine) are responsible for comparing the result against
// agent.MaxTurns (§3.2's `turn_count <= agent.max_turns` invariant).
func (c *Context) IncrementTurn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turn++
	return c.turn
}

// SetState stores a value under key in the per-run custom map.
func (c *Context) SetState(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = value
}

// GetState retrieves a typed value from the custom map. ok is false when the
// key is absent or the stored value is not assignable to T.
func GetState[T any](c *Context, key string) (value T, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, present := c.state[key]
	if !present {
		return value, false
	}
	typed, ok := raw.(T)
	return typed, ok
}

// Memory returns the bound Memory collaborator, or nil if none was
// configured.
func (c *Context) Memory() memory.Memory {
	return c.mem
}

// Fork builds an isolated child Context sharing no backing storage with the
// parent, used for sub-agent invocation with an isolated context declaration
// (§4.6.3). The child starts with a copy of the current transcript and
// state, turn counter reset to zero, and the same Memory handle (memory
// access is serialized per-run regardless).
func (c *Context) Fork() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	child := &Context{
		messages: append([]model.Message(nil), c.messages...),
		state:    make(map[string]any, len(c.state)),
		mem:      c.mem,
	}
	for k, v := range c.state {
		child.state[k] = v
	}
	return child
}
