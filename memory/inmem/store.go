// Package inmem provides an in-memory implementation of memory.Memory.
// It is intended for tests and single-process deployments; production
// deployments needing durability should use memory/mongomem.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agentcore/runtime/memory"
)

type entry struct {
	value any
}

// Store is an in-memory implementation of memory.Memory. It is safe for
// concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]entry // userScope -> key -> entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string]map[string]entry)}
}

// Get implements memory.Memory.
func (s *Store) Get(_ context.Context, key, userScope string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scope, ok := s.data[userScope]
	if !ok {
		return nil, false, nil
	}
	e, ok := scope[key]
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Put implements memory.Memory.
func (s *Store) Put(_ context.Context, key string, value any, userScope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope, ok := s.data[userScope]
	if !ok {
		scope = make(map[string]entry)
		s.data[userScope] = scope
	}
	scope[key] = entry{value: value}
	return nil
}

// Search implements memory.Memory using a simple substring match over keys,
// scored by how much of the key the query covers (query length over key
// length plus one); an empty query matches every key with score 1. It is
// sufficient for tests
// and small in-process agents; durable deployments should prefer a store
// with native text search (memory/mongomem).
func (s *Store) Search(_ context.Context, query string, k int, userScope string) ([]memory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scope, ok := s.data[userScope]
	if !ok {
		return nil, nil
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var results []memory.Entry
	for key, e := range scope {
		lk := strings.ToLower(key)
		if q == "" || strings.Contains(lk, q) {
			score := 1.0
			if q != "" {
				score = float64(len(q)) / float64(len(lk)+1)
			}
			results = append(results, memory.Entry{Key: key, Value: e.value, Score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Key < results[j].Key
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}
