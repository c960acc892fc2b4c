package streamparse

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Completer implements the incremental JSON completion algorithm from §4.4:
// as text deltas arrive it scans the buffer-so-far, tracking which JSON
// constructs are still open, and projects only the top-level object keys
// whose values have actually closed in the real stream (never a key still
// being written). Final synthesizes a completion tail so the whole buffer
// parses as valid JSON.
//
// The completer buffers the whole response rather than re-deriving its
// scanner state incrementally; re-scanning is cheap relative to one LLM
// token and keeps the bracket/string/escape bookkeeping in one place.
type Completer struct {
	buf []byte

	closedKeys  map[string]json.RawMessage
	closedOrder []string
	lastSig     string // signature of the last projection emitted, to detect changes
}

// NewCompleter returns an empty Completer ready to receive text deltas for
// one structured-output response.
func NewCompleter() *Completer {
	return &Completer{closedKeys: make(map[string]json.RawMessage), lastSig: "{}"}
}

// Feed appends delta to the buffered response and re-scans it for newly
// closed top-level keys. It returns the current projection (a JSON object
// containing only fully-closed keys) and whether that projection changed
// since the previous call.
func (c *Completer) Feed(delta string) (json.RawMessage, bool) {
	c.buf = append(c.buf, delta...)
	closed, order := scanClosedTopLevelKeys(c.buf)
	c.closedKeys = closed
	c.closedOrder = order

	projection := c.projection()
	sig := string(projection)
	changed := sig != c.lastSig
	c.lastSig = sig
	return projection, changed
}

// projection marshals the currently-closed top-level keys, in the order
// they closed, as a single JSON object.
func (c *Completer) projection() json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range c.closedOrder {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(key)
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(c.closedKeys[key])
	}
	buf.WriteByte('}')
	return json.RawMessage(buf.Bytes())
}

// Final synthesizes a completion tail for any still-open constructs in the
// buffered response and attempts to parse the result as one JSON value. It
// is called once the stream itself has ended; a malformed buffer (e.g. the
// model never emitted valid JSON at all) returns an error.
func (c *Completer) Final() (json.RawMessage, error) {
	completed := completeJSON(c.buf)
	var v any
	if err := json.Unmarshal(completed, &v); err != nil {
		return nil, fmt.Errorf("streamparse: stream did not complete to valid JSON: %w", err)
	}
	return json.RawMessage(completed), nil
}

// completeJSON synthesizes the minimal closing tail needed to turn buf,
// assumed to be a streaming prefix of a JSON object or array, into a
// syntactically valid JSON document. It does not fix malformed JSON; it
// only closes constructs that are legitimately still open.
func completeJSON(buf []byte) []byte {
	var stack []byte
	inString := false
	escape := false

	for _, b := range buf {
		if inString {
			switch {
			case escape:
				escape = false
			case b == '\\':
				escape = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, b)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := make([]byte, len(buf))
	copy(out, buf)

	if inString {
		out = append(out, '"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			out = append(out, '}')
		case '[':
			out = append(out, ']')
		}
	}
	return out
}

// scanner phases for top-level (depth-1) key/value parsing.
const (
	phaseExpectKeyOrEnd = iota
	phaseInKey
	phaseExpectColon
	phaseExpectValue
	phaseInContainerValue
	phaseInStringValue
	phaseInScalarValue
	phaseExpectCommaOrEnd
)

// scanClosedTopLevelKeys walks buf tracking bracket/string/escape state and
// returns every top-level object key whose value has fully closed in the
// literal buffer so far (as opposed to still being written), along with the
// order in which they closed.
func scanClosedTopLevelKeys(buf []byte) (map[string]json.RawMessage, []string) {
	closed := make(map[string]json.RawMessage)
	var order []string

	i := 0
	n := len(buf)
	skipSpace := func() {
		for i < n && isJSONSpace(buf[i]) {
			i++
		}
	}

	skipSpace()
	if i >= n || buf[i] != '{' {
		return closed, order
	}
	i++ // consume root '{'

	phase := phaseExpectKeyOrEnd
	var curKey []byte
	var valueStart int
	var containerStack []byte

	for i < n {
		skipSpace()
		if i >= n {
			break
		}
		c := buf[i]

		switch phase {
		case phaseExpectKeyOrEnd:
			if c == '}' {
				return closed, order // root object closed; nothing left to track
			}
			if c != '"' {
				return closed, order // malformed so far; stop tracking
			}
			end, ok := scanString(buf, i)
			if !ok {
				return closed, order // key string not yet closed
			}
			var key string
			if err := json.Unmarshal(buf[i:end], &key); err != nil {
				return closed, order
			}
			curKey = []byte(key)
			i = end
			phase = phaseExpectColon
		case phaseExpectColon:
			if c != ':' {
				return closed, order
			}
			i++
			phase = phaseExpectValue
		case phaseExpectValue:
			valueStart = i
			switch {
			case c == '{' || c == '[':
				containerStack = append(containerStack, c)
				i++
				phase = phaseInContainerValue
			case c == '"':
				phase = phaseInStringValue
			default:
				phase = phaseInScalarValue
			}
		case phaseInContainerValue:
			if c == '"' {
				end, ok := scanString(buf, i)
				if !ok {
					return closed, order
				}
				i = end
				continue
			}
			switch c {
			case '{', '[':
				containerStack = append(containerStack, c)
			case '}', ']':
				if len(containerStack) == 0 {
					return closed, order
				}
				containerStack = containerStack[:len(containerStack)-1]
				if len(containerStack) == 0 {
					closed[string(curKey)] = append(json.RawMessage(nil), buf[valueStart:i+1]...)
					order = append(order, string(curKey))
					i++
					phase = phaseExpectCommaOrEnd
					continue
				}
			}
			i++
		case phaseInStringValue:
			end, ok := scanString(buf, valueStart)
			if !ok {
				return closed, order // string value not yet closed
			}
			closed[string(curKey)] = append(json.RawMessage(nil), buf[valueStart:end]...)
			order = append(order, string(curKey))
			i = end
			phase = phaseExpectCommaOrEnd
		case phaseInScalarValue:
			for i < n && buf[i] != ',' && buf[i] != '}' && !isJSONSpace(buf[i]) {
				i++
			}
			if i >= n {
				return closed, order // scalar value not yet terminated
			}
			closed[string(curKey)] = append(json.RawMessage(nil), buf[valueStart:i]...)
			order = append(order, string(curKey))
			phase = phaseExpectCommaOrEnd
		case phaseExpectCommaOrEnd:
			switch c {
			case ',':
				i++
				phase = phaseExpectKeyOrEnd
			case '}':
				return closed, order
			default:
				return closed, order
			}
		}
	}
	return closed, order
}

// scanString returns the index just past the closing quote of the JSON
// string literal starting at buf[start] (which must be '"'), or false if
// the string is not yet closed within buf.
func scanString(buf []byte, start int) (int, bool) {
	i := start + 1
	escape := false
	for i < len(buf) {
		b := buf[i]
		if escape {
			escape = false
			i++
			continue
		}
		if b == '\\' {
			escape = true
			i++
			continue
		}
		if b == '"' {
			return i + 1, true
		}
		i++
	}
	return 0, false
}

func isJSONSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
