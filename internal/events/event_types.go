package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventInconsistencyDetected EventType = "inconsistency_detected"
	EventMalformedHistory      EventType = "malformed_history"
	EventAuditCompleted        EventType = "audit_completed"
)

// Event is a data-quality finding emitted by the consistency checker.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// InconsistencyPayload payload.
type InconsistencyPayload struct {
	// NodeID replaces the event's TicketID for classifier closure findings.
	NodeID       string `json:"node_id,omitempty"`
	Field        string `json:"field"`
	Denormalized string `json:"denormalized"`
	Derived      string `json:"derived"`
}

// MalformedHistoryPayload payload.
type MalformedHistoryPayload struct {
	EventIndex int    `json:"event_index"`
	Reason     string `json:"reason"`
}

// AuditCompletedPayload payload.
type AuditCompletedPayload struct {
	Scanned              int           `json:"scanned"`
	Inconsistent         int           `json:"inconsistent"`
	Malformed            int           `json:"malformed"`
	ClassifierMismatches int           `json:"classifier_mismatches"`
	Truncated            bool          `json:"truncated"`
	Duration             time.Duration `json:"duration_ns"`
}
