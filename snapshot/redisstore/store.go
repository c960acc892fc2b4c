// Package redisstore provides a Redis-backed snapshot.Store, for
// deployments that need a paused run to survive past the lifetime of the
// in-process engine that created it. It mirrors the thin
// wrap-a-driver-client layering used elsewhere in this codebase: callers
// build a *redis.Client and pass it to New, and receive a typed interface
// exposing only Save/Load/Delete.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentcore/runtime/snapshot"
)

// Options configures the Store.
type Options struct {
	// Redis is the Redis connection used to persist snapshots. Required.
	Redis *redis.Client
	// KeyPrefix namespaces snapshot keys; defaults to "agentcore:run:".
	KeyPrefix string
	// TTL bounds how long a paused run's snapshot survives before Redis
	// expires it. Zero means no expiration.
	TTL time.Duration
}

// Store is a Redis-backed snapshot.Store.
type Store struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// New constructs a Store. opts.Redis is required.
func New(opts Options) (*Store, error) {
	if opts.Redis == nil {
		return nil, errors.New("redisstore: Options.Redis is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "agentcore:run:"
	}
	return &Store{redis: opts.Redis, prefix: prefix, ttl: opts.TTL}, nil
}

func (s *Store) key(runID string) string {
	return s.prefix + runID
}

// Save implements snapshot.Store.
func (s *Store) Save(ctx context.Context, runID string, snap *snapshot.Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("redisstore: marshal snapshot for run %q: %w", runID, err)
	}
	if err := s.redis.Set(ctx, s.key(runID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: save run %q: %w", runID, err)
	}
	return nil
}

// Load implements snapshot.Store.
func (s *Store) Load(ctx context.Context, runID string) (*snapshot.Snapshot, error) {
	data, err := s.redis.Get(ctx, s.key(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, snapshot.NewNotFoundError(runID)
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: load run %q: %w", runID, err)
	}
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("redisstore: decode run %q: %w", runID, err)
	}
	return snap, nil
}

// Delete implements snapshot.Store.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if err := s.redis.Del(ctx, s.key(runID)).Err(); err != nil {
		return fmt.Errorf("redisstore: delete run %q: %w", runID, err)
	}
	return nil
}
