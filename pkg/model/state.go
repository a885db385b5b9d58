package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type WorkflowID string

// NewWorkflowID generates a new unique WorkflowID
func NewWorkflowID() WorkflowID {
	return WorkflowID(uuid.New().String())
}

type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// Validate checks if the workflow status is valid
func (s WorkflowStatus) Validate() error {
	switch s {
	case WorkflowPending, WorkflowRunning, WorkflowCompleted, WorkflowFailed:
		return nil
	default:
		return goerr.Wrap(ErrValidation, "invalid workflow status", goerr.V("status", s))
	}
}

// Terminal reports whether the status is final
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

// CanTransition reports whether the state machine allows moving to next.
// Allowed: pending -> running -> {completed|failed}. Terminal states are final.
func (s WorkflowStatus) CanTransition(next WorkflowStatus) bool {
	switch s {
	case WorkflowPending:
		return next == WorkflowRunning || next == WorkflowCompleted || next == WorkflowFailed
	case WorkflowRunning:
		return next == WorkflowCompleted || next == WorkflowFailed
	default:
		return false
	}
}

// WorkflowRecord tracks one long-running task owned by a conversation agent
type WorkflowRecord struct {
	ID          WorkflowID     `firestore:"id" json:"id"`
	Name        string         `firestore:"name" json:"name"`
	Status      WorkflowStatus `firestore:"status" json:"status"`
	Params      map[string]any `firestore:"params,omitempty" json:"params,omitempty"`
	Result      any            `firestore:"result,omitempty" json:"result,omitempty"`
	CreatedAt   time.Time      `firestore:"createdAt" json:"createdAt"`
	CompletedAt *time.Time     `firestore:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// AgentState is the durable state of one conversation agent. The
// authoritative copy lives in the repository; the agent keeps an in-memory
// copy that is written through on every mutation. History holds only the
// most recent window of messages; the full log stays in the message
// collection regardless of cache trimming.
type AgentState struct {
	ConversationID ConversationID    `firestore:"conversationId" json:"conversationId"`
	History        []*Message        `firestore:"-" json:"-"`
	UserContext    map[string]string `firestore:"userContext,omitempty" json:"userContext,omitempty"`
	Workflows      []*WorkflowRecord `firestore:"workflows,omitempty" json:"workflows,omitempty"`
	LastActivity   time.Time         `firestore:"lastActivity" json:"lastActivity"`
}

// Workflow returns the workflow record with the given ID, or nil
func (s *AgentState) Workflow(id WorkflowID) *WorkflowRecord {
	for _, wf := range s.Workflows {
		if wf.ID == id {
			return wf
		}
	}
	return nil
}
