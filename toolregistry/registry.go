// Package toolregistry implements the Tool Registry (C2): a catalog of
// declared tools split into eager and deferred categories, with a pluggable
// search strategy selecting the top-K relevant deferred tools for a given
// request (§4.2).
package toolregistry

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/agentcore/runtime/errs"
)

// Handler executes a declared tool given its name and resolved JSON
// arguments, returning the raw JSON result payload. Declarations without a
// Handler describe tools the caller dispatches some other way (e.g. a
// pseudo-tool the engine synthesizes itself, like a handoff or sub-agent
// invocation).
type Handler func(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error)

// Category classifies a Tool Declaration as always-offered (Eager) or
// search-selected (Deferred), per §3.1.
type Category string

const (
	Eager    Category = "eager"
	Deferred Category = "deferred"
)

// Declaration is a Tool Declaration (§3.1): {name, description, parameter
// schema, requires_confirmation, category}.
type Declaration struct {
	Name        string
	Description string
	// Schema is a JSON Schema document describing the argument object,
	// compiled lazily by planexec when validating calls against this tool.
	Schema               any
	RequiresConfirmation bool
	Category             Category
	// Handler executes this tool. Nil for pseudo-tools the engine
	// synthesizes itself (handoffs, sub-agent invocation).
	Handler Handler
}

// Registry is the in-process catalog of declared tools (§4.2). It performs
// no I/O beyond what the configured Strategy chooses to do, and is read-only
// after construction is complete for a given run — a fresh Registry is built
// per Agent Definition at configuration time, per Design Note "Mutable
// global registries of tools → per-agent immutable Tool Registry".
type Registry struct {
	byName   map[string]*Declaration
	order    []string // declaration order, for tie-breaking
	strategy Strategy
}

// New constructs an empty Registry using the given search Strategy for
// ranking deferred tools. A nil strategy defaults to Lexical (BM25).
func New(strategy Strategy) *Registry {
	if strategy == nil {
		strategy = NewLexicalStrategy(DefaultBM25Params())
	}
	return &Registry{byName: make(map[string]*Declaration), strategy: strategy}
}

// Declare registers a tool. Two tools with the same name in one registry is
// a configuration error (§3.1).
func (r *Registry) Declare(decl Declaration) error {
	if decl.Name == "" {
		return errs.New(errs.KindInvalidConfig, "tool declaration requires a name")
	}
	if _, exists := r.byName[decl.Name]; exists {
		return errs.New(errs.KindInvalidConfig, "duplicate tool declaration %q", decl.Name)
	}
	d := decl
	r.byName[d.Name] = &d
	r.order = append(r.order, d.Name)
	return nil
}

// Lookup returns the declaration for name, if registered.
func (r *Registry) Lookup(name string) (*Declaration, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns every declared tool in declaration order.
func (r *Registry) All() []*Declaration {
	out := make([]*Declaration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Select returns the tools to offer the LLM for one request: every Eager
// tool plus the strategy's top_k ranking of Deferred tools for the given
// query (§4.2's `eager_tools ∪ strategy.top_k(query, deferred_tools)`).
func (r *Registry) Select(query string, topK int) []*Declaration {
	var eager, deferred []*Declaration
	for _, name := range r.order {
		d := r.byName[name]
		if d.Category == Eager {
			eager = append(eager, d)
		} else {
			deferred = append(deferred, d)
		}
	}
	ranked := r.strategy.TopK(query, deferred, topK)

	seen := make(map[string]bool, len(eager))
	out := make([]*Declaration, 0, len(eager)+len(ranked))
	for _, d := range eager {
		seen[d.Name] = true
		out = append(out, d)
	}
	for _, d := range ranked {
		if !seen[d.Name] {
			seen[d.Name] = true
			out = append(out, d)
		}
	}
	return out
}

// declarationOrder returns a name -> position index reflecting the order
// Declare was called, used by search strategies to break score ties
// deterministically (§4.2: "ties broken by declaration order").
func declarationOrder(candidates []*Declaration) map[string]int {
	idx := make(map[string]int, len(candidates))
	for i, d := range candidates {
		idx[d.Name] = i
	}
	return idx
}

// sortByScoreThenOrder sorts candidates by descending score, breaking ties
// by original declaration order.
func sortByScoreThenOrder(candidates []*Declaration, score map[string]float64) {
	order := declarationOrder(candidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := score[candidates[i].Name], score[candidates[j].Name]
		if si != sj {
			return si > sj
		}
		return order[candidates[i].Name] < order[candidates[j].Name]
	})
}
