package engine

import (
	"strings"

	"github.com/agentcore/runtime/agentctx"
	"github.com/agentcore/runtime/agentdef"
	"github.com/agentcore/runtime/model"
	"github.com/agentcore/runtime/toolregistry"
)

// defaultToolSelectK bounds how many deferred tools the registry's search
// strategy ranks into a single request (§4.2).
const defaultToolSelectK = 8

// buildRequest assembles one LLM_CALL payload: system instructions, the
// windowed Context, the tool schemas C2 selects for the current query, and
// the structured-output schema when one is configured (§4.6.1 step 2).
func buildRequest(def *agentdef.Definition, actx *agentctx.Context, structured bool) *model.Request {
	history := actx.Window(nil)

	messages := make([]*model.Message, 0, len(history)+1)
	if def.Instructions != "" {
		sys := model.Message{Role: model.RoleSystem, Parts: []model.Part{model.TextPart{Text: def.Instructions}}}
		messages = append(messages, &sys)
	}
	for i := range history {
		m := history[i]
		messages = append(messages, &m)
	}

	req := &model.Request{
		Model:    def.ModelID,
		Messages: messages,
		Stream:   true,
	}
	if def.Registry != nil {
		for _, decl := range def.Registry.Select(lastUserText(history), defaultToolSelectK) {
			req.Tools = append(req.Tools, &model.ToolDefinition{
				Name:        decl.Name,
				Description: decl.Description,
				InputSchema: decl.Schema,
			})
		}
	}
	if structured && len(def.StructuredOutputSchema) > 0 {
		// Passed through as raw JSON; the transport collaborator owns
		// decoding it into whatever shape its provider's API expects.
		req.StructuredSchema = def.StructuredOutputSchema
	}
	return req
}

// lastUserText returns the text of the most recent user TextPart in
// history, used as the query the registry's search strategy ranks deferred
// tools against.
func lastUserText(history []model.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != model.RoleUser {
			continue
		}
		for _, p := range history[i].Parts {
			if t, ok := p.(model.TextPart); ok {
				return t.Text
			}
		}
	}
	return ""
}

// handoffToolName returns the pseudo-tool name convention for target
// (§4.6.3).
func handoffToolName(target string) string {
	return "handoff_to_" + snakeCase(target)
}

// subAgentToolName returns the synthetic tool name convention for a
// sub-agent (§4.6.3).
func subAgentToolName(name string) string {
	return "invoke_" + snakeCase(name)
}

// isHandoffTool reports whether toolName follows the handoff_to_<target>
// convention, returning the registered Definition it names.
func isHandoffTool(def *agentdef.Definition, toolName string) (*agentdef.Definition, bool) {
	if !strings.HasPrefix(toolName, "handoff_to_") {
		return nil, false
	}
	for _, h := range def.Handoffs {
		if h != nil && handoffToolName(h.Name) == toolName {
			return h, true
		}
	}
	return nil, false
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r == ' ' || r == '-' {
			b.WriteByte('_')
			continue
		}
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
