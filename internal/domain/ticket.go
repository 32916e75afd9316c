package domain

import "time"

// TicketState enumerates lifecycle states for tickets.
type TicketState string

const (
	StateOpen       TicketState = "open"
	StateInProgress TicketState = "in_progress"
	StatePending    TicketState = "pending"
	StateClosed     TicketState = "closed"
	StateCancelled  TicketState = "cancelled"
)

// KnownStates lists the states the dataset uses, in display order.
var KnownStates = []TicketState{StateOpen, StateInProgress, StatePending, StateClosed, StateCancelled}

// IsClosed reports whether the state counts as closed.
func (s TicketState) IsClosed() bool {
	return s == StateClosed
}

// DefaultDimension is the classification dimension used when callers omit one.
const DefaultDimension = "tipo_solicitud"

// Ticket is the aggregate for support cases. Every field below History is a
// denormalized projection of History and must stay in sync with it.
type Ticket struct {
	ID              string
	Title           string
	Description     string
	CreatedBy       string
	AssignedTo      *string
	Classifications map[string]string
	CreatedAt       time.Time

	CurrentState      TicketState
	ClosedAt          *time.Time
	ReopenCount       int
	StateChangeCount  int
	CommentCount      int
	LastStateChangeAt *time.Time
	LastModifiedAt    *time.Time

	History []HistoryEvent
}

// Classification returns the node id for the given dimension, if any.
func (t *Ticket) Classification(dimension string) (string, bool) {
	if t.Classifications == nil {
		return "", false
	}
	id, ok := t.Classifications[dimension]
	return id, ok && id != ""
}
