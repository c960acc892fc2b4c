package planexec

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentcore/runtime/errs"
	"github.com/agentcore/runtime/toolregistry"
)

// validateArgs checks a call's resolved arguments against its tool's
// declared JSON Schema (§4.5 step 1: "Validate: each call's arguments match
// the tool's JSON Schema; unknown tools -> tool_unknown; schema mismatch ->
// tool_bad_args"). A Declaration with a nil Schema skips validation, since
// §3.1 makes the schema optional.
func validateArgs(registry *toolregistry.Registry, name string, args json.RawMessage) error {
	decl, ok := registry.Lookup(name)
	if !ok {
		return errs.New(errs.KindToolUnknown, "no tool declared with name %q", name)
	}
	if decl.Schema == nil {
		return nil
	}

	var payloadDoc any
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, &payloadDoc); err != nil {
		return errs.Wrap(errs.KindToolBadArgs, err, "tool %q arguments are not valid JSON", name)
	}

	schema, err := compileSchema(name, decl.Schema)
	if err != nil {
		return errs.Wrap(errs.KindInvalidConfig, err, "compile schema for tool %q", name)
	}
	if err := schema.Validate(payloadDoc); err != nil {
		return errs.Wrap(errs.KindToolBadArgs, err, "tool %q arguments do not match its schema", name)
	}
	return nil
}

func compileSchema(name string, schemaDoc any) (*jsonschema.Schema, error) {
	url := fmt.Sprintf("mem://tool/%s.json", name)
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(url)
}
