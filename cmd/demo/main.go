// Command demo wires a single agent Definition to the default Engine and
// runs one interaction, printing the result. The model.Client here is a
// canned stub: implementing an LLM transport is out of scope for this
// module (§1 Non-goals), so the stub stands in for a real provider
// adapter the way the teacher's cmd/demo stands in a stubPlanner for a
// real planner.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/agentcore/runtime/agentdef"
	"github.com/agentcore/runtime/engine"
	"github.com/agentcore/runtime/model"
	"github.com/agentcore/runtime/snapshot/inmemstore"
	"github.com/agentcore/runtime/toolregistry"
)

// cannedClient replays one scripted text response, ignoring req entirely.
// It exists only so this command has something to call Stream on; real
// callers supply a provider-backed model.Client.
type cannedClient struct {
	text string
}

func (c *cannedClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return nil, fmt.Errorf("demo: Complete not implemented, use Stream")
}

func (c *cannedClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return &cannedStreamer{chunks: []model.Chunk{
		{Type: model.ChunkTypeTextDelta, TextDelta: c.text},
		{Type: model.ChunkTypeResponseDone, StopReason: "stop"},
	}}, nil
}

type cannedStreamer struct {
	chunks []model.Chunk
	idx    int
}

func (s *cannedStreamer) Recv() (model.Chunk, error) {
	c := s.chunks[s.idx]
	s.idx++
	return c, nil
}

func (s *cannedStreamer) Close() error { return nil }

func main() {
	ctx := context.Background()

	registry := toolregistry.New(nil)
	if err := registry.Declare(toolregistry.Declaration{
		Name:        "get_time",
		Description: "Returns the current time.",
		Category:    toolregistry.Eager,
		Handler: func(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"time":"unknown, this is a demo"}`), nil
		},
	}); err != nil {
		log.Fatalf("declare tool: %v", err)
	}

	def := &agentdef.Definition{
		Name:         "demo.agent",
		Instructions: "You are a minimal demo agent.",
		ModelID:      "demo-model",
		MaxTurns:     5,
		Registry:     registry,
	}

	e := engine.New(engine.Options{
		Client:        &cannedClient{text: "Hello from the agent runtime core."},
		SnapshotStore: inmemstore.New(),
	})

	res, err := e.Interact(ctx, def, "hi there", nil)
	if err != nil {
		log.Fatalf("interact: %v", err)
	}

	fmt.Printf("status=%s output=%q turns=%d\n", res.Status, res.Output, res.TurnCount)
}
