package planexec

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/agentcore/runtime/errs"
)

// resolveRefsMatcher finds $ref:call_id.pointer markers inside a JSON
// string literal so ResolveRefs can substitute the referenced value.
var resolveRefsMatcher = refPattern

// ResolveRefs substitutes every $ref:call_id.json_pointer marker found in
// raw with the value it points to within results (call_id -> that call's
// JSON payload). A marker referencing a call missing from results, or a
// pointer into its payload that does not resolve, is an
// errs.KindToolUnresolvedRef error.
//
// Substitution happens at the string level: a marker that is the *entire*
// value of a JSON string field is replaced with the raw resolved JSON
// (preserving its type - object, array, number, ...); a marker embedded
// inside a larger string is substituted textually, stringifying the
// resolved value.
func ResolveRefs(raw json.RawMessage, results map[string]json.RawMessage) (json.RawMessage, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, errs.Wrap(errs.KindToolUnresolvedRef, err, "resolve refs: invalid JSON arguments")
	}
	resolved, err := resolveValue(root, results)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(resolved)
	if err != nil {
		return nil, errs.Wrap(errs.KindToolUnresolvedRef, err, "resolve refs: re-marshal failed")
	}
	return out, nil
}

func resolveValue(v any, results map[string]json.RawMessage) (any, error) {
	switch val := v.(type) {
	case string:
		return resolveString(val, results)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			r, err := resolveValue(child, results)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			r, err := resolveValue(child, results)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, results map[string]json.RawMessage) (any, error) {
	locs := resolveRefsMatcher.FindAllStringIndex(s, -1)
	if locs == nil {
		return s, nil
	}
	isWholeValue := len(locs) == 1 && locs[0][0] == 0 && locs[0][1] == len(s)

	out := s
	for _, loc := range locs {
		full := s[loc[0]:loc[1]]
		callID, pointer := splitRef(full)
		payload, ok := results[callID]
		if !ok {
			return nil, errs.New(errs.KindToolUnresolvedRef, "unresolved reference to call %q", callID)
		}
		value, err := lookupPointer(payload, pointer)
		if err != nil {
			return nil, err
		}

		if isWholeValue {
			var decoded any
			if err := json.Unmarshal(value, &decoded); err != nil {
				return nil, errs.Wrap(errs.KindToolUnresolvedRef, err, "decode resolved ref %q", full)
			}
			return decoded, nil
		}

		// Embedded in a larger string: substitute the resolved value's textual
		// form (unquoted for plain strings, otherwise the raw JSON text).
		var asString string
		if err := json.Unmarshal(value, &asString); err != nil {
			asString = string(value)
		}
		out = strings.Replace(out, full, asString, 1)
	}
	return out, nil
}

// splitRef parses "$ref:call_id.pointer" into (call_id, pointer). pointer
// may be empty, meaning "the whole payload".
func splitRef(marker string) (callID, pointer string) {
	body := strings.TrimPrefix(marker, "$ref:")
	dot := strings.Index(body, ".")
	if dot < 0 {
		return body, ""
	}
	return body[:dot], body[dot+1:]
}

// lookupPointer walks a dot-separated path (with optional [index] array
// segments) into payload and returns the raw JSON at that location.
func lookupPointer(payload json.RawMessage, pointer string) (json.RawMessage, error) {
	if pointer == "" {
		return payload, nil
	}
	var current any
	if err := json.Unmarshal(payload, &current); err != nil {
		return nil, errs.Wrap(errs.KindToolUnresolvedRef, err, "lookup pointer %q: invalid payload JSON", pointer)
	}
	for _, segment := range strings.Split(pointer, ".") {
		name, indices := splitIndices(segment)
		if name != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, errs.New(errs.KindToolUnresolvedRef, "lookup pointer %q: %q is not an object", pointer, name)
			}
			current, ok = m[name]
			if !ok {
				return nil, errs.New(errs.KindToolUnresolvedRef, "lookup pointer %q: missing field %q", pointer, name)
			}
		}
		for _, idx := range indices {
			arr, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, errs.New(errs.KindToolUnresolvedRef, "lookup pointer %q: index %d out of range", pointer, idx)
			}
			current = arr[idx]
		}
	}
	out, err := json.Marshal(current)
	if err != nil {
		return nil, errs.Wrap(errs.KindToolUnresolvedRef, err, "lookup pointer %q: re-marshal failed", pointer)
	}
	return out, nil
}

// splitIndices splits a path segment like "items[0][1]" into its field
// name ("items") and the ordered list of array indices.
func splitIndices(segment string) (name string, indices []int) {
	for {
		open := strings.Index(segment, "[")
		if open < 0 {
			if name == "" {
				name = segment
			}
			return
		}
		if name == "" {
			name = segment[:open]
		}
		closeIdx := strings.Index(segment[open:], "]")
		if closeIdx < 0 {
			return
		}
		closeIdx += open
		if n, err := strconv.Atoi(segment[open+1 : closeIdx]); err == nil {
			indices = append(indices, n)
		}
		segment = segment[closeIdx+1:]
	}
}
