package models

import "time"

// EventType identifies a domain event emitted by the review core.
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventSessionCompleted EventType = "session_completed"
	EventSessionCancelled EventType = "session_cancelled"
	EventSessionExpired   EventType = "session_expired"
	EventCardLapsed       EventType = "card_lapsed"
	EventCardMastered     EventType = "card_mastered"
)

// Event is a domain event produced alongside a core operation. The core
// never performs telemetry I/O itself; events are handed to an external
// sink to consume.
type Event struct {
	Type       EventType `json:"type"`
	LearnerID  int64     `json:"learner_id"`
	CardID     int64     `json:"card_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventSink consumes domain events emitted by the core. Implementations
// must not block; the core calls Emit synchronously.
type EventSink interface {
	Emit(event Event)
}

// NopSink discards all events.
type NopSink struct{}

// Emit implements EventSink.
func (NopSink) Emit(Event) {}
