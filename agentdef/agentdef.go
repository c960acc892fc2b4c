// Package agentdef defines the Agent Definition (§3.4): the static
// configuration an Interaction Engine run operates against — its system
// instructions, model, tool registry, guardrails, handoff targets, and
// sub-agents.
package agentdef

import (
	"encoding/json"

	"github.com/agentcore/runtime/guardrail"
	"github.com/agentcore/runtime/memory"
	"github.com/agentcore/runtime/toolregistry"
)

// Definition is one agent's static configuration. Definitions are
// immutable once built and safe to share across concurrent runs; the
// mutable per-run state lives in agentctx.Context instead.
type Definition struct {
	// Name identifies the agent, used in telemetry, transcripts, and as
	// the Handoff target name other agents reference.
	Name string `yaml:"name"`
	// Instructions is the system prompt seeding every run of this agent.
	Instructions string `yaml:"instructions"`
	// ModelID selects which model the LLM Transport Contract should use.
	ModelID string `yaml:"model_id"`
	// MaxTurns bounds the number of LLM_CALL iterations in one run
	// (§4.6.1, §8's turn_count <= max_turns invariant). Zero means the
	// engine's configured default applies.
	MaxTurns int `yaml:"max_turns"`
	// Registry is this agent's Tool Registry (C2).
	Registry *toolregistry.Registry `yaml:"-"`
	// InputGuardrails run over the user's input before the first LLM call.
	InputGuardrails *guardrail.Chain `yaml:"-"`
	// OutputGuardrails run over the assistant's candidate output before a
	// turn is surfaced to the caller.
	OutputGuardrails *guardrail.Chain `yaml:"-"`
	// Handoffs lists the other Definitions this agent may transfer control
	// to (§4.6.3's HandoffPart resolution).
	Handoffs []*Definition `yaml:"-"`
	// SubAgents lists Definitions exposed to this agent as callable tools,
	// invoked recursively with a bounded depth (§4.6.3).
	SubAgents []SubAgentDecl `yaml:"-"`
	// Memory is the optional Memory collaborator (§6.2); nil means this
	// agent has no memory tool available.
	Memory memory.Memory `yaml:"-"`
	// StructuredOutputSchema, when set, makes every run of this agent a
	// structured-output run: the final assistant turn must parse against
	// this JSON Schema (§4.4, §6.4).
	StructuredOutputSchema json.RawMessage `yaml:"structured_output_schema,omitempty"`
	// ReflectionEnabled is carried on the Definition and defaults to off.
	// The engine runs no critic loop and does not read this flag.
	ReflectionEnabled bool `yaml:"reflection_enabled"`
	// MaxReflections is carried alongside ReflectionEnabled; the engine
	// does not read it either.
	MaxReflections int `yaml:"max_reflections"`
}

// Validate checks the Definition's required fields and internal
// consistency, returning every problem found rather than stopping at the
// first (agents are typically constructed once at startup, so surfacing
// every misconfiguration saves a retry round trip).
func (d *Definition) Validate() []string {
	var problems []string
	if d.Name == "" {
		problems = append(problems, "agent definition requires a Name")
	}
	if d.ModelID == "" {
		problems = append(problems, "agent definition requires a ModelID")
	}
	if d.Registry == nil {
		problems = append(problems, "agent definition requires a Registry (use toolregistry.New(nil) for an empty one)")
	}
	seen := make(map[string]bool)
	for _, h := range d.Handoffs {
		if h == nil {
			continue
		}
		if seen[h.Name] {
			problems = append(problems, "duplicate handoff target "+h.Name)
		}
		seen[h.Name] = true
	}
	return problems
}

// FindHandoff returns the Definition named target among d.Handoffs, if any.
func (d *Definition) FindHandoff(target string) (*Definition, bool) {
	for _, h := range d.Handoffs {
		if h != nil && h.Name == target {
			return h, true
		}
	}
	return nil, false
}

// SubAgentDecl declares one sub-agent exposed to its parent as a callable
// tool (the synthetic `invoke_<snake_name>` convention, §4.6.3).
type SubAgentDecl struct {
	Agent *Definition
	// SharedContext runs the sub-agent against the parent's live Context
	// (agentctx.Context.Fork is NOT used) instead of an isolated copy.
	// Isolated is the default, matching the spec's "shared or isolated
	// Context per declaration" wording with isolation as the conservative
	// choice.
	SharedContext bool
}

// FindSubAgent returns the SubAgentDecl named name among d.SubAgents, if
// any.
func (d *Definition) FindSubAgent(name string) (SubAgentDecl, bool) {
	for _, s := range d.SubAgents {
		if s.Agent != nil && s.Agent.Name == name {
			return s, true
		}
	}
	return SubAgentDecl{}, false
}
