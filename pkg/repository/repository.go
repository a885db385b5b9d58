package repository

import (
	"context"

	"github.com/thatamjad/cf-ai-amjad/pkg/model"
)

// Repository defines durable persistence for conversation agents: the
// append-only message log, the write-through agent state, and the vector
// memory store.
type Repository interface {
	// PutMessage appends a message to the conversation's durable log
	PutMessage(ctx context.Context, msg *model.Message) error

	// ListMessages retrieves the most recent `limit` messages in
	// chronological order. A non-positive limit returns the full log.
	ListMessages(ctx context.Context, id model.ConversationID, limit int) ([]*model.Message, error)

	// DeleteMessages removes the conversation's entire message log
	DeleteMessages(ctx context.Context, id model.ConversationID) error

	// GetState retrieves the agent state for a conversation
	GetState(ctx context.Context, id model.ConversationID) (*model.AgentState, error)

	// PutState saves the agent state (write-through on every mutation)
	PutState(ctx context.Context, state *model.AgentState) error

	// PutMemory saves a memory entry with its embedding
	PutMemory(ctx context.Context, entry *model.MemoryEntry) error

	// SearchMemories performs nearest-neighbor search over the
	// conversation's memory entries
	SearchMemories(ctx context.Context, id model.ConversationID, embedding []float32, topK int) ([]*model.MemoryMatch, error)
}
