package agent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/repository"
)

func TestWorkflowLifecycle(t *testing.T) {
	repo := repository.NewMemory()
	a := newAgent(t, repo, &mockLLM{reply: "ok"}, &mockEmbedder{})
	ctx := context.Background()

	id, err := a.TriggerWorkflow(ctx, "nightly-report", map[string]any{"day": "monday"})
	gt.NoError(t, err)
	gt.NotEqual(t, id, model.WorkflowID(""))

	workflows := a.Workflows()
	gt.A(t, workflows).Length(1)
	gt.V(t, workflows[0].Status).Equal(model.WorkflowPending)
	gt.V(t, workflows[0].Name).Equal("nightly-report")

	gt.NoError(t, a.UpdateWorkflowStatus(ctx, id, model.WorkflowRunning, nil))
	gt.NoError(t, a.UpdateWorkflowStatus(ctx, id, model.WorkflowCompleted, map[string]any{"rows": 42}))

	workflows = a.Workflows()
	gt.V(t, workflows[0].Status).Equal(model.WorkflowCompleted)
	gt.V(t, workflows[0].CompletedAt).NotNil()
}

func TestWorkflowUnknownID(t *testing.T) {
	repo := repository.NewMemory()
	a := newAgent(t, repo, &mockLLM{reply: "ok"}, &mockEmbedder{})

	err := a.UpdateWorkflowStatus(context.Background(), "no-such-id", model.WorkflowRunning, nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestWorkflowTerminalIsFinal(t *testing.T) {
	repo := repository.NewMemory()
	a := newAgent(t, repo, &mockLLM{reply: "ok"}, &mockEmbedder{})
	ctx := context.Background()

	id, err := a.TriggerWorkflow(ctx, "one-shot", nil)
	gt.NoError(t, err)
	gt.NoError(t, a.UpdateWorkflowStatus(ctx, id, model.WorkflowFailed, nil))

	err = a.UpdateWorkflowStatus(ctx, id, model.WorkflowRunning, nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestWorkflowInvalidStatus(t *testing.T) {
	repo := repository.NewMemory()
	a := newAgent(t, repo, &mockLLM{reply: "ok"}, &mockEmbedder{})

	err := a.UpdateWorkflowStatus(context.Background(), "x", model.WorkflowStatus("paused"), nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestManagerSingleInstance(t *testing.T) {
	repo := repository.NewMemory()
	m := newManager(repo)
	ctx := context.Background()
	id := model.NewConversationID()

	a1, err := m.Get(ctx, id)
	gt.NoError(t, err)
	a2, err := m.Get(ctx, id)
	gt.NoError(t, err)
	gt.True(t, a1 == a2)
	gt.V(t, m.Size()).Equal(1)

	other, err := m.Get(ctx, model.NewConversationID())
	gt.NoError(t, err)
	gt.False(t, a1 == other)
	gt.V(t, m.Size()).Equal(2)
}

func TestManagerEvictIdle(t *testing.T) {
	repo := repository.NewMemory()
	m := newManager(repo)
	ctx := context.Background()

	a, err := m.Get(ctx, model.NewConversationID())
	gt.NoError(t, err)
	_, err = a.ProcessMessage(ctx, "hello", "")
	gt.NoError(t, err)

	// Active agents survive
	gt.V(t, m.EvictIdle(time.Hour)).Equal(0)
	gt.V(t, m.Size()).Equal(1)

	// Everything is idle relative to a zero cutoff
	gt.V(t, m.EvictIdle(-time.Second)).Equal(1)
	gt.V(t, m.Size()).Equal(0)
}
