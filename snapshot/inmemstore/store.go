// Package inmemstore provides a map-backed snapshot.Store for tests and the
// default in-process engine.
package inmemstore

import (
	"context"
	"sync"

	"github.com/agentcore/runtime/snapshot"
)

// Store is an in-memory snapshot.Store. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]*snapshot.Snapshot
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string]*snapshot.Snapshot)}
}

// Save implements snapshot.Store.
func (s *Store) Save(_ context.Context, runID string, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[runID] = snap
	return nil
}

// Load implements snapshot.Store.
func (s *Store) Load(_ context.Context, runID string) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[runID]
	if !ok {
		return nil, snapshot.NewNotFoundError(runID)
	}
	return snap, nil
}

// Delete implements snapshot.Store.
func (s *Store) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}
