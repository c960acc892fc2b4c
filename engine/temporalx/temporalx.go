// Package temporalx adapts the Interaction Engine's run loop to Temporal's
// durable execution, so that the pause/resume protocol (C7) can be backed by
// a Temporal workflow instead of an in-memory or Redis snapshot store.
//
// Only the workflow/activity shape is adapted here, not a full worker
// deployment: this module never runs a Temporal worker process, so nothing
// in this package is exercised end-to-end. It exists as the contract a host
// application wires a real worker against.
package temporalx

import (
	"context"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/agentcore/runtime/agentctx"
	"github.com/agentcore/runtime/agentdef"
	"github.com/agentcore/runtime/engine"
	"github.com/agentcore/runtime/snapshot"
)

// TaskQueue is the default Temporal task queue for agent run workflows.
const TaskQueue = "agentcore-runs"

// RunRequest is the workflow input: the agent to run, the input text, and an
// optional prior Context to continue (nil starts a fresh run).
type RunRequest struct {
	Definition *agentdef.Definition
	Input      string
	Context    *agentctx.Context
}

// RunSignal carries an operator's confirmation decision for a paused run,
// delivered to the workflow via workflow.Signal rather than a snapshot.Store
// round trip (§4.7's "or an equivalent durable-execution mechanism").
type RunSignal struct {
	CallID   string
	Approved bool
	Note     string
}

const confirmationSignalName = "agentcore.confirmation"

// InteractWorkflow runs one agent interaction to completion, pausing on
// confirmation-required tool batches by waiting on confirmationSignalName
// instead of returning a Snapshot to an external caller. Each stretch of
// the run up to a pause or a terminal result runs as one activity
// (RunTurnActivityName first, ResumeTurnActivityName after each
// confirmation signal), so Temporal retries that stretch as a unit,
// independently of the workflow's own history.
func InteractWorkflow(ctx workflow.Context, req RunRequest) (*engine.Result, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
	}
	actx := workflow.WithActivityOptions(ctx, ao)

	var res engine.Result
	if err := workflow.ExecuteActivity(actx, RunTurnActivityName, req).Get(actx, &res); err != nil {
		return nil, err
	}

	for res.Status == engine.StatusPaused {
		sigCh := workflow.GetSignalChannel(ctx, confirmationSignalName)
		var sig RunSignal
		sigCh.Receive(ctx, &sig)

		if sig.Approved {
			_ = res.Snapshot.Approve(sig.CallID, sig.Note)
		} else {
			_ = res.Snapshot.Reject(sig.CallID, sig.Note)
		}
		if !res.Snapshot.ReadyToResume() {
			continue
		}

		resumeReq := ResumeRequest{Definition: req.Definition, Snapshot: res.Snapshot}
		if err := workflow.ExecuteActivity(actx, ResumeTurnActivityName, resumeReq).Get(actx, &res); err != nil {
			return nil, err
		}
	}

	return &res, nil
}

// ResumeRequest is the activity input for resuming a paused run once every
// pending call has a recorded decision.
type ResumeRequest struct {
	Definition *agentdef.Definition
	Snapshot   *snapshot.Snapshot
}

const (
	// RunTurnActivityName is registered against a worker's task queue to back
	// InteractWorkflow's initial call into the in-process engine.Engine.
	RunTurnActivityName = "agentcore.RunTurn"
	// ResumeTurnActivityName backs InteractWorkflow's post-signal resume call.
	ResumeTurnActivityName = "agentcore.ResumeTurn"
)

// Activities bundles the in-process Engine an activity worker dispatches
// into, mirroring the teacher's pattern of registering bound methods as
// Temporal activities rather than free functions closing over global state.
type Activities struct {
	Engine *engine.Engine
}

// RunTurn is the activity implementation for RunTurnActivityName.
func (a *Activities) RunTurn(ctx context.Context, req RunRequest) (*engine.Result, error) {
	return a.Engine.Interact(ctx, req.Definition, req.Input, req.Context)
}

// ResumeTurn is the activity implementation for ResumeTurnActivityName.
func (a *Activities) ResumeTurn(ctx context.Context, req ResumeRequest) (*engine.Result, error) {
	return a.Engine.Resume(ctx, req.Definition, req.Snapshot)
}

// StartRun kicks off InteractWorkflow on c's default task queue, returning a
// handle a caller can Get() or Signal() (e.g. to deliver a RunSignal).
func StartRun(ctx context.Context, c client.Client, workflowID string, req RunRequest) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: TaskQueue,
	}
	return c.ExecuteWorkflow(ctx, opts, InteractWorkflow, req)
}

// SignalConfirmation delivers an operator's decision to a paused workflow
// run identified by workflowID.
func SignalConfirmation(ctx context.Context, c client.Client, workflowID string, sig RunSignal) error {
	return c.SignalWorkflow(ctx, workflowID, "", confirmationSignalName, sig)
}
