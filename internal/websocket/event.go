package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to the entity
type EventType string

const (
	EventTypeProcessing EventType = "processing"
	EventTypeResuming   EventType = "resuming"
	EventTypeCompleted  EventType = "completed"
	EventTypeFailed     EventType = "failed"
	EventTypeSettled    EventType = "settled"
	EventTypeCredited   EventType = "credited"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeBatch     EntityType = "batch"
	EntityTypeCandidate EntityType = "candidate"
	EntityTypeWallet    EntityType = "wallet"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "batch.completed"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "batch"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// BatchProcessing creates a batch.processing event
func BatchProcessing(payload interface{}) Event {
	return NewEvent(EventTypeProcessing, EntityTypeBatch, payload)
}

// BatchResuming creates a batch.resuming event
func BatchResuming(payload interface{}) Event {
	return NewEvent(EventTypeResuming, EntityTypeBatch, payload)
}

// BatchCompleted creates a batch.completed event
func BatchCompleted(payload interface{}) Event {
	return NewEvent(EventTypeCompleted, EntityTypeBatch, payload)
}

// BatchFailed creates a batch.failed event
func BatchFailed(payload interface{}) Event {
	return NewEvent(EventTypeFailed, EntityTypeBatch, payload)
}

// CandidateSettled creates a candidate.settled event
func CandidateSettled(payload interface{}) Event {
	return NewEvent(EventTypeSettled, EntityTypeCandidate, payload)
}

// CandidateFailed creates a candidate.failed event
func CandidateFailed(payload interface{}) Event {
	return NewEvent(EventTypeFailed, EntityTypeCandidate, payload)
}

// WalletCredited creates a wallet.credited event
func WalletCredited(payload interface{}) Event {
	return NewEvent(EventTypeCredited, EntityTypeWallet, payload)
}
