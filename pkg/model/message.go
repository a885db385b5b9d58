package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type MessageID string

// NewMessageID generates a new unique MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

type ConversationID string

// NewConversationID generates a new unique ConversationID
func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Validate checks if the role is valid
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return nil
	default:
		return goerr.Wrap(ErrValidation, "invalid role", goerr.V("role", r))
	}
}

// MessageMeta carries optional per-message metadata. Latency and token
// estimate are stamped on assistant messages only.
type MessageMeta struct {
	UserID        string `firestore:"userId,omitempty" json:"userId,omitempty"`
	LatencyMs     int64  `firestore:"latencyMs,omitempty" json:"latencyMs,omitempty"`
	TokenEstimate int    `firestore:"tokenEstimate,omitempty" json:"tokenEstimate,omitempty"`
}

// Message is one turn of a conversation. Immutable once persisted.
// Ordering key is CreatedAt; the writing agent keeps it monotonic per
// conversation, with insertion order breaking ties.
type Message struct {
	ID             MessageID      `firestore:"id" json:"id"`
	ConversationID ConversationID `firestore:"conversationId" json:"conversationId"`
	Role           Role           `firestore:"role" json:"role"`
	Content        string         `firestore:"content" json:"content"`
	CreatedAt      time.Time      `firestore:"createdAt" json:"createdAt"`
	Meta           MessageMeta    `firestore:"meta,omitempty" json:"meta,omitempty"`
}

// Validate checks the message fields that must always be present
func (m *Message) Validate() error {
	if m.ID == "" {
		return goerr.Wrap(ErrValidation, "message ID is empty")
	}
	if m.ConversationID == "" {
		return goerr.Wrap(ErrValidation, "conversation ID is empty")
	}
	if m.Content == "" {
		return goerr.Wrap(ErrValidation, "message content is empty")
	}
	return m.Role.Validate()
}
