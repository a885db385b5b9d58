package agent

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/utils/logging"
)

// TriggerWorkflow records a new long-running task in pending state and
// writes the agent state through
func (a *Agent) TriggerWorkflow(ctx context.Context, name string, params map[string]any) (model.WorkflowID, error) {
	if name == "" {
		return "", goerr.Wrap(model.ErrValidation, "workflow name is empty")
	}

	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	wf := &model.WorkflowRecord{
		ID:        model.NewWorkflowID(),
		Name:      name,
		Status:    model.WorkflowPending,
		Params:    params,
		CreatedAt: time.Now(),
	}
	a.mu.Lock()
	a.state.Workflows = append(a.state.Workflows, wf)
	a.mu.Unlock()

	if err := a.putState(ctx); err != nil {
		return "", err
	}

	logging.From(ctx).Info("workflow triggered",
		"conversation_id", a.id,
		"workflow_id", wf.ID,
		"name", name,
	)
	return wf.ID, nil
}

// UpdateWorkflowStatus moves a workflow through its state machine.
// Unknown IDs and transitions out of terminal states are rejected.
func (a *Agent) UpdateWorkflowStatus(ctx context.Context, id model.WorkflowID, status model.WorkflowStatus, result any) error {
	if err := status.Validate(); err != nil {
		return err
	}

	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	a.mu.Lock()
	wf := a.state.Workflow(id)
	if wf == nil {
		a.mu.Unlock()
		return goerr.Wrap(model.ErrNotFound, "unknown workflow", goerr.V("workflow_id", id))
	}

	if !wf.Status.CanTransition(status) {
		from := wf.Status
		a.mu.Unlock()
		return goerr.Wrap(model.ErrValidation, "invalid workflow transition",
			goerr.V("workflow_id", id),
			goerr.V("from", from),
			goerr.V("to", status))
	}

	wf.Status = status
	if result != nil {
		wf.Result = result
	}
	if status.Terminal() {
		now := time.Now()
		wf.CompletedAt = &now
	}
	a.mu.Unlock()

	return a.putState(ctx)
}

// Workflows returns a snapshot of the agent's workflow records
func (a *Agent) Workflows() []*model.WorkflowRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*model.WorkflowRecord, len(a.state.Workflows))
	for i, wf := range a.state.Workflows {
		cp := *wf
		out[i] = &cp
	}
	return out
}
