package planexec

import (
	"regexp"

	"github.com/agentcore/runtime/errs"
)

// refPattern matches $ref:call_id.json_pointer references embedded as JSON
// string values in a call's Arguments (§4.5). call_id matches the same
// character set tool call ids are generated with; the pointer is whatever
// follows the first dot, dot-separated path segments.
var refPattern = regexp.MustCompile(`\$ref:([A-Za-z0-9_-]+)(?:\.[A-Za-z0-9_.\[\]]*)?`)

// referencedCallIDs returns the distinct CallIDs referenced anywhere within
// raw via $ref:call_id.pointer markers.
func referencedCallIDs(raw []byte) []string {
	matches := refPattern.FindAllSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var ids []string
	for _, m := range matches {
		id := string(m[1])
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// BuildWaves computes DependsOn for every call in calls from its embedded
// $ref markers, detects circular dependencies, and groups the calls into
// waves: each wave only depends on calls in strictly earlier waves, so a
// wave's calls can run concurrently (§4.5's topological layering).
//
// Calls are grouped using Kahn's algorithm: each round collects every call
// whose remaining in-degree is zero, in original batch order, as the next
// wave.
func BuildWaves(calls []ToolCall) ([][]ToolCall, error) {
	byID := make(map[string]*ToolCall, len(calls))
	resolved := make([]ToolCall, len(calls))
	for i, c := range calls {
		resolved[i] = c
		resolved[i].DependsOn = referencedCallIDs(c.Arguments)
		byID[c.CallID] = &resolved[i]
	}

	// Drop dependencies on call IDs outside this batch from the DAG. The
	// executor resolves refs only against this batch's results, so such a
	// reference fails with errs.KindToolUnresolvedRef when its call runs.
	for i := range resolved {
		var inBatch []string
		for _, dep := range resolved[i].DependsOn {
			if _, ok := byID[dep]; ok && dep != resolved[i].CallID {
				inBatch = append(inBatch, dep)
			}
		}
		resolved[i].DependsOn = inBatch
	}

	if err := detectCycle(resolved); err != nil {
		return nil, err
	}

	remaining := make(map[string]*ToolCall, len(resolved))
	for i := range resolved {
		remaining[resolved[i].CallID] = &resolved[i]
	}

	var waves [][]ToolCall
	for len(remaining) > 0 {
		var wave []ToolCall
		for _, c := range resolved {
			if _, ok := remaining[c.CallID]; !ok {
				continue
			}
			ready := true
			for _, dep := range c.DependsOn {
				if _, stillPending := remaining[dep]; stillPending {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, c)
			}
		}
		if len(wave) == 0 {
			// Should be unreachable: detectCycle already rejected cycles.
			return nil, errs.New(errs.KindToolCycleDetected, "no progress possible building tool call waves")
		}
		for _, c := range wave {
			delete(remaining, c.CallID)
		}
		waves = append(waves, wave)
	}
	return waves, nil
}

// detectCycle runs a DFS over the dependency graph, per the
// visited/in-progress recursion-stack pattern, and rejects any cycle with
// errs.KindToolCycleDetected.
func detectCycle(calls []ToolCall) error {
	byID := make(map[string]ToolCall, len(calls))
	for _, c := range calls {
		byID[c.CallID] = c
	}
	visited := make(map[string]bool)
	inStack := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if inStack[id] {
			return errs.New(errs.KindToolCycleDetected, "circular dependency detected involving tool call %q", id)
		}
		if visited[id] {
			return nil
		}
		inStack[id] = true
		for _, dep := range byID[id].DependsOn {
			if _, ok := byID[dep]; ok {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		inStack[id] = false
		visited[id] = true
		return nil
	}

	for _, c := range calls {
		if !visited[c.CallID] {
			if err := visit(c.CallID); err != nil {
				return err
			}
		}
	}
	return nil
}
