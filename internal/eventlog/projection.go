package eventlog

import (
	"time"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
)

// Projection holds every denormalized field derivable from a history.
type Projection struct {
	CurrentState domain.TicketState
	// StateDerived is false when the history records neither a state change
	// nor an initial state; CurrentState then holds the creation default.
	StateDerived      bool
	ClosedAt          *time.Time
	ReopenCount       int
	StateChangeCount  int
	CommentCount      int
	LastStateChangeAt *time.Time
	LastModifiedAt    *time.Time
}

// Project derives the projection from the ticket's history in one forward pass.
// State changes without a target are skipped.
func Project(t *domain.Ticket) Projection {
	p := Projection{CurrentState: domain.StateOpen}
	if initial, ok := InitialState(t); ok {
		p.CurrentState = initial
		p.StateDerived = true
	}

	var lastClosure *time.Time
	for _, e := range Forward(t) {
		ts := e.Timestamp
		p.LastModifiedAt = &ts

		switch a := e.Action.(type) {
		case domain.StateChange:
			if a.To == "" {
				continue
			}
			p.StateChangeCount++
			p.CurrentState = a.To
			p.StateDerived = true
			p.LastStateChangeAt = &ts
			if e.IsReopen() {
				p.ReopenCount++
			}
			if a.To.IsClosed() {
				lastClosure = &ts
			}
		case domain.CommentAdded:
			p.CommentCount++
		}
	}

	if p.CurrentState.IsClosed() {
		p.ClosedAt = lastClosure
	}
	if p.LastModifiedAt == nil && !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		p.LastModifiedAt = &created
	}
	return p
}

// DerivedReopenCount counts closed -> non-closed transitions.
func DerivedReopenCount(t *domain.Ticket) int {
	count := 0
	for _, e := range Forward(t) {
		if e.IsReopen() {
			count++
		}
	}
	return count
}

// Apply writes the projection onto the ticket's denormalized fields.
func Apply(t *domain.Ticket, p Projection) {
	t.CurrentState = p.CurrentState
	t.ClosedAt = p.ClosedAt
	t.ReopenCount = p.ReopenCount
	t.StateChangeCount = p.StateChangeCount
	t.CommentCount = p.CommentCount
	t.LastStateChangeAt = p.LastStateChangeAt
	t.LastModifiedAt = p.LastModifiedAt
}
