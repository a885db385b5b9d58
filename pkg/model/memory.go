package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

type MemoryType string

const (
	MemoryConversation MemoryType = "conversation"
	MemoryFact         MemoryType = "fact"
	MemoryPreference   MemoryType = "preference"
	MemoryTask         MemoryType = "task"
)

// Validate checks if the memory type is valid
func (t MemoryType) Validate() error {
	switch t {
	case MemoryConversation, MemoryFact, MemoryPreference, MemoryTask:
		return nil
	default:
		return goerr.Wrap(ErrValidation, "invalid memory type", goerr.V("type", t))
	}
}

// MemoryEntry is a persisted, embedded fragment of conversation content used
// for semantic retrieval. Never mutated after write. The agent is the sole
// writer for its own conversation's entries.
type MemoryEntry struct {
	ID             MemoryID           `firestore:"id"`
	Type           MemoryType         `firestore:"type"`
	Content        string             `firestore:"content"`
	Embedding      firestore.Vector32 `firestore:"embedding"`
	ConversationID ConversationID     `firestore:"conversationId"`
	Importance     float64            `firestore:"importance"`
	Tags           []string           `firestore:"tags,omitempty"`
	CreatedAt      time.Time          `firestore:"createdAt"`
}

// MemoryMatch is one nearest-neighbor result from a vector search
type MemoryMatch struct {
	Entry *MemoryEntry
	Score float64
}
