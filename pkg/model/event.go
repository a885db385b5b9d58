package model

import (
	"encoding/json"
	"time"
)

// EventType enumerates the stream protocol messages. The set is closed:
// handlers switch exhaustively over these values.
type EventType string

const (
	EventConnected EventType = "connected"
	EventToken     EventType = "token"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
	EventHeartbeat EventType = "heartbeat"
)

// Event is one stream protocol message. For an assistant turn the layer
// emits zero or more token events followed by exactly one complete event,
// or one error event instead of complete.
type Event struct {
	Type          EventType `json:"type"`
	TurnID        MessageID `json:"turnId,omitempty"`
	Text          string    `json:"text,omitempty"`
	Content       string    `json:"content,omitempty"`
	LatencyMs     int64     `json:"latencyMs,omitempty"`
	TokenEstimate int       `json:"tokenEstimate,omitempty"`
	Message       string    `json:"message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewConnectedEvent creates the acknowledgment sent when a connection opens
func NewConnectedEvent() Event {
	return Event{Type: EventConnected, Timestamp: time.Now()}
}

// NewTokenEvent creates one incremental text event for the given turn
func NewTokenEvent(turnID MessageID, text string) Event {
	return Event{Type: EventToken, TurnID: turnID, Text: text, Timestamp: time.Now()}
}

// NewCompleteEvent creates the terminal event of a successful turn,
// carrying the full concatenated content and response metadata
func NewCompleteEvent(turnID MessageID, content string, latencyMs int64, tokenEstimate int) Event {
	return Event{
		Type:          EventComplete,
		TurnID:        turnID,
		Content:       content,
		LatencyMs:     latencyMs,
		TokenEstimate: tokenEstimate,
		Timestamp:     time.Now(),
	}
}

// NewErrorEvent creates the terminal event of a failed turn
func NewErrorEvent(turnID MessageID, message string) Event {
	return Event{Type: EventError, TurnID: turnID, Message: message, Timestamp: time.Now()}
}

// NewHeartbeatEvent creates a keep-alive event
func NewHeartbeatEvent() Event {
	return Event{Type: EventHeartbeat, Timestamp: time.Now()}
}

// Encode returns the JSON wire form of the event
func (e Event) Encode() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"type":"error","message":"failed to encode event"}`)
	}
	return data
}
