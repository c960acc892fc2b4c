// Package mongomem provides a durable implementation of memory.Memory backed
// by MongoDB, for deployments that need memory to outlive a single process.
package mongomem

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/agentcore/runtime/memory"
)

// doc is the on-disk shape of a memory entry.
type doc struct {
	UserScope string `bson:"user_scope"`
	Key       string `bson:"key"`
	Value     any    `bson:"value"`
}

// Store is a MongoDB-backed implementation of memory.Memory. Each entry is
// addressed by the compound key (UserScope, Key); Put performs an upsert so
// repeated writes are idempotent.
type Store struct {
	coll *mongo.Collection
}

// New returns a Store backed by the given collection. Callers are
// responsible for creating an index on {user_scope: 1, key: 1} (unique) and,
// for Search, a text index on the "value" field; this package does not
// create indexes itself so callers retain control over migrations.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// Get implements memory.Memory.
func (s *Store) Get(ctx context.Context, key, userScope string) (any, bool, error) {
	var out doc
	err := s.coll.FindOne(ctx, bson.M{"user_scope": userScope, "key": key}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongomem: get %q: %w", key, err)
	}
	return out.Value, true, nil
}

// Put implements memory.Memory.
func (s *Store) Put(ctx context.Context, key string, value any, userScope string) error {
	filter := bson.M{"user_scope": userScope, "key": key}
	update := bson.M{"$set": doc{UserScope: userScope, Key: key, Value: value}}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongomem: put %q: %w", key, err)
	}
	return nil
}

// Search implements memory.Memory using MongoDB's $text search operator.
// Callers must have created a text index over the "value" field for this to
// return results; without one, Mongo returns a server-side error which this
// method surfaces unchanged.
func (s *Store) Search(ctx context.Context, query string, k int, userScope string) ([]memory.Entry, error) {
	filter := bson.M{"user_scope": userScope, "$text": bson.M{"$search": query}}
	projection := bson.M{"score": bson.M{"$meta": "textScore"}}
	findOpts := options.Find().
		SetProjection(projection).
		SetSort(bson.M{"score": bson.M{"$meta": "textScore"}})
	if k > 0 {
		findOpts = findOpts.SetLimit(int64(k))
	}
	cur, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongomem: search %q: %w", query, err)
	}
	defer cur.Close(ctx)

	var results []memory.Entry
	for cur.Next(ctx) {
		var out struct {
			doc   `bson:",inline"`
			Score float64 `bson:"score"`
		}
		if err := cur.Decode(&out); err != nil {
			return nil, fmt.Errorf("mongomem: decode search result: %w", err)
		}
		results = append(results, memory.Entry{Key: out.Key, Value: out.Value, Score: out.Score})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongomem: iterate search results: %w", err)
	}
	return results, nil
}
