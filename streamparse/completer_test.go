package streamparse

import (
	"encoding/json"
	"testing"
)

func TestCompleterProjectsOnlyClosedKeys(t *testing.T) {
	c := NewCompleter()

	_, changed := c.Feed(`{"name": "ann`)
	if changed {
		t.Fatalf("expected no projection change while name value is still open")
	}

	partial, changed := c.Feed(`a", "age": 30, "tags": ["a"`)
	if !changed {
		t.Fatalf("expected projection change once name closed")
	}
	var got map[string]any
	if err := json.Unmarshal(partial, &got); err != nil {
		t.Fatalf("projection is not valid JSON: %v, raw=%s", err, partial)
	}
	if got["name"] != "anna" {
		t.Fatalf("expected name=anna, got %+v", got)
	}
	if got["age"] != float64(30) {
		t.Fatalf("expected age=30, got %+v", got)
	}
	if _, ok := got["tags"]; ok {
		t.Fatalf("tags should not be closed yet, got %+v", got)
	}

	partial, changed = c.Feed(`, "b"]}`)
	if !changed {
		t.Fatalf("expected projection change once tags closed")
	}
	if err := json.Unmarshal(partial, &got); err != nil {
		t.Fatalf("final projection invalid: %v", err)
	}
	tags, ok := got["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("expected tags=[a,b], got %+v", got["tags"])
	}
}

func TestCompleterFinalParsesCompleteDocument(t *testing.T) {
	c := NewCompleter()
	c.Feed(`{"ok": true, "items": [1, 2, 3]}`)
	final, err := c.Final()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got struct {
		OK    bool  `json:"ok"`
		Items []int `json:"items"`
	}
	if err := json.Unmarshal(final, &got); err != nil {
		t.Fatalf("final not valid JSON: %v", err)
	}
	if !got.OK || len(got.Items) != 3 {
		t.Fatalf("unexpected decoded value: %+v", got)
	}
}

// TestCompleterPartialTagsStreamingScenario exercises the exact chunk
// sequence from the structured-streaming scenario: a title and a tag list
// arrive across four deltas; the first delta closes no key and must not
// change the projection, and the last projection must carry both keys with
// their final values.
func TestCompleterPartialTagsStreamingScenario(t *testing.T) {
	c := NewCompleter()
	chunks := []string{
		`{"title"`,
		`: "X"`,
		`, "tags": ["a"`,
		`, "b"]}`,
	}

	var last json.RawMessage
	for i, delta := range chunks {
		partial, changed := c.Feed(delta)
		if i < 1 && changed {
			t.Fatalf("chunk %d: no key has closed yet, expected no projection change", i)
		}
		if changed {
			last = partial
		}
	}

	var got map[string]any
	if err := json.Unmarshal(last, &got); err != nil {
		t.Fatalf("projection is not valid JSON: %v, raw=%s", err, last)
	}
	if got["title"] != "X" {
		t.Fatalf("expected title=X, got %+v", got)
	}
	tags, ok := got["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Fatalf("expected tags=[a,b], got %+v", got["tags"])
	}

	final, err := c.Final()
	if err != nil {
		t.Fatalf("unexpected error completing final document: %v", err)
	}
	var finalGot struct {
		Title string   `json:"title"`
		Tags  []string `json:"tags"`
	}
	if err := json.Unmarshal(final, &finalGot); err != nil {
		t.Fatalf("final document invalid: %v", err)
	}
	if finalGot.Title != "X" || len(finalGot.Tags) != 2 {
		t.Fatalf("unexpected final document: %+v", finalGot)
	}
}

func TestCompleteJSONClosesOpenConstructs(t *testing.T) {
	out := completeJSON([]byte(`{"a": [1, 2, {"b": "unterminated`))
	var v any
	if err := json.Unmarshal(out, &v); err != nil {
		t.Fatalf("completeJSON produced invalid JSON: %v, got=%s", err, out)
	}
}
