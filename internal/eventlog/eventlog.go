// Package eventlog treats a ticket's history as an append-only event log and
// derives the ticket's denormalized fields from it.
//
// The history slice is the source of truth. Denormalized ticket fields are a
// projection of it: Append adds one event and then recomputes the projection,
// so a write path built on this package cannot drift from the log.
package eventlog

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
)

var (
	// ErrOutOfOrder is returned by Append for an event older than the last one.
	ErrOutOfOrder = errors.New("event precedes the last recorded event")
	// ErrMissingAction is returned by Append for an event without an action.
	ErrMissingAction = errors.New("event has no action")
	// ErrMissingTarget is returned by Append for a state change without "to".
	ErrMissingTarget = errors.New("state change has no target state")
)

// Append adds e to the ticket's history and refreshes the denormalized fields.
// Existing events are never modified, removed or reordered.
func Append(t *domain.Ticket, e domain.HistoryEvent) error {
	if e.Action == nil {
		return ErrMissingAction
	}
	if sc, ok := e.StateChange(); ok && sc.To == "" {
		return ErrMissingTarget
	}
	if n := len(t.History); n > 0 && e.Timestamp.Before(t.History[n-1].Timestamp) {
		return fmt.Errorf("%w: %s before %s", ErrOutOfOrder,
			e.Timestamp.Format(time.RFC3339), t.History[n-1].Timestamp.Format(time.RFC3339))
	}
	t.History = append(t.History, e)
	Apply(t, Project(t))
	return nil
}

// EventsUpTo yields the events with timestamp strictly before cutoff, most
// recent first. The sequence is lazy and can be ranged over repeatedly.
func EventsUpTo(t *domain.Ticket, cutoff time.Time) iter.Seq[domain.HistoryEvent] {
	history := t.History
	return func(yield func(domain.HistoryEvent) bool) {
		for i := len(history) - 1; i >= 0; i-- {
			if !history[i].Timestamp.Before(cutoff) {
				continue
			}
			if !yield(history[i]) {
				return
			}
		}
	}
}

// Forward yields events in insertion order together with their index.
func Forward(t *domain.Ticket) iter.Seq2[int, domain.HistoryEvent] {
	history := t.History
	return func(yield func(int, domain.HistoryEvent) bool) {
		for i, e := range history {
			if !yield(i, e) {
				return
			}
		}
	}
}

// InitialState returns the creation state recorded on the first event.
func InitialState(t *domain.Ticket) (domain.TicketState, bool) {
	if len(t.History) == 0 {
		return "", false
	}
	details := t.History[0].Details
	if details == nil || details.InitialState == "" {
		return "", false
	}
	return details.InitialState, true
}
