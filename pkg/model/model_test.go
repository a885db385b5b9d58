package model_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
)

func TestRoleValidate(t *testing.T) {
	gt.NoError(t, model.RoleUser.Validate())
	gt.NoError(t, model.RoleAssistant.Validate())
	gt.NoError(t, model.RoleSystem.Validate())

	err := model.Role("moderator").Validate()
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestMessageValidate(t *testing.T) {
	msg := &model.Message{
		ID:             model.NewMessageID(),
		ConversationID: model.NewConversationID(),
		Role:           model.RoleUser,
		Content:        "hello",
	}
	gt.NoError(t, msg.Validate())

	empty := &model.Message{
		ID:             model.NewMessageID(),
		ConversationID: msg.ConversationID,
		Role:           model.RoleUser,
	}
	gt.Error(t, empty.Validate())
}

func TestWorkflowTransitions(t *testing.T) {
	gt.True(t, model.WorkflowPending.CanTransition(model.WorkflowRunning))
	gt.True(t, model.WorkflowPending.CanTransition(model.WorkflowFailed))
	gt.True(t, model.WorkflowRunning.CanTransition(model.WorkflowCompleted))
	gt.True(t, model.WorkflowRunning.CanTransition(model.WorkflowFailed))

	// Terminal states are final
	gt.False(t, model.WorkflowCompleted.CanTransition(model.WorkflowRunning))
	gt.False(t, model.WorkflowFailed.CanTransition(model.WorkflowPending))
	gt.False(t, model.WorkflowCompleted.CanTransition(model.WorkflowFailed))

	gt.True(t, model.WorkflowCompleted.Terminal())
	gt.True(t, model.WorkflowFailed.Terminal())
	gt.False(t, model.WorkflowRunning.Terminal())
}

func TestWorkflowStatusValidate(t *testing.T) {
	gt.NoError(t, model.WorkflowPending.Validate())
	gt.Error(t, model.WorkflowStatus("paused").Validate())
}

func TestMemoryTypeValidate(t *testing.T) {
	gt.NoError(t, model.MemoryConversation.Validate())
	gt.NoError(t, model.MemoryFact.Validate())
	gt.Error(t, model.MemoryType("dream").Validate())
}

func TestAgentStateWorkflowLookup(t *testing.T) {
	wf := &model.WorkflowRecord{ID: model.NewWorkflowID(), Name: "export", Status: model.WorkflowPending}
	state := &model.AgentState{
		ConversationID: model.NewConversationID(),
		Workflows:      []*model.WorkflowRecord{wf},
	}

	gt.V(t, state.Workflow(wf.ID)).Equal(wf)
	gt.V(t, state.Workflow(model.WorkflowID("missing"))).Nil()
}

func TestEventEncode(t *testing.T) {
	ev := model.NewTokenEvent(model.MessageID("m1"), "hello")
	data := ev.Encode()
	gt.S(t, string(data)).Contains(`"type":"token"`)
	gt.S(t, string(data)).Contains(`"text":"hello"`)
}
