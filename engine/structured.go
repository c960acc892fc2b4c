package engine

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// validateStructured checks a completed structured-output payload against
// schemaDoc, returning the validated raw JSON on success (§4.4, §4.6.1 step
// 4's structured-output branch). final may be empty if the completer never
// saw a fully-closed top-level document, which is itself a validation
// failure.
func validateStructured(schemaDoc json.RawMessage, final json.RawMessage) (json.RawMessage, error) {
	if len(final) == 0 {
		return nil, fmt.Errorf("model response did not complete a JSON document matching the structured output schema")
	}
	if len(schemaDoc) == 0 {
		return final, nil
	}

	var doc any
	if err := json.Unmarshal(schemaDoc, &doc); err != nil {
		return nil, fmt.Errorf("structured output schema is not valid JSON: %w", err)
	}
	var instance any
	if err := json.Unmarshal(final, &instance); err != nil {
		return nil, fmt.Errorf("structured output is not valid JSON: %w", err)
	}

	c := jsonschema.NewCompiler()
	const url = "mem://structured-output.json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add structured output schema resource: %w", err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile structured output schema: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, err
	}
	return final, nil
}
