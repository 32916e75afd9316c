// Package temporal reconstructs what a ticket's state was at a past instant by
// searching its event history.
package temporal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/eventlog"
)

// ErrStateUnknown is returned under FallbackStrict when nothing in the history
// determines the state at the cutoff.
var ErrStateUnknown = errors.New("state not determinable from history")

// FallbackPolicy decides what StateAt answers when no state change precedes
// the cutoff and the first event carries no initial state.
type FallbackPolicy int

const (
	// FallbackCurrentState answers the ticket's current state. This is only
	// right when the ticket's whole relevant history lies after the cutoff.
	FallbackCurrentState FallbackPolicy = iota
	// FallbackStrict returns ErrStateUnknown instead of guessing.
	FallbackStrict
)

// ParseFallbackPolicy maps a config value to a policy.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "current", "current_state":
		return FallbackCurrentState, nil
	case "strict":
		return FallbackStrict, nil
	default:
		return FallbackCurrentState, fmt.Errorf("unknown state fallback policy %q", s)
	}
}

func (p FallbackPolicy) String() string {
	if p == FallbackStrict {
		return "strict"
	}
	return "current"
}

// Reconstructor answers state-at-time questions. The zero value uses
// FallbackCurrentState. It holds no mutable state and is safe for concurrent use.
type Reconstructor struct {
	Policy FallbackPolicy
}

// NewReconstructor returns a reconstructor with the given policy.
func NewReconstructor(policy FallbackPolicy) Reconstructor {
	return Reconstructor{Policy: policy}
}

// StateAt returns the "to" of the most recent state change strictly before
// cutoff. Without one it falls back to the first event's initial state, then to
// the policy. State changes missing "to" are skipped.
func (r Reconstructor) StateAt(t *domain.Ticket, cutoff time.Time) (domain.TicketState, error) {
	for e := range eventlog.EventsUpTo(t, cutoff) {
		if sc, ok := e.StateChange(); ok && sc.To != "" {
			return sc.To, nil
		}
	}
	return r.fallback(t)
}

// StateNow is StateAt with an unbounded cutoff.
func (r Reconstructor) StateNow(t *domain.Ticket) (domain.TicketState, error) {
	return r.StateAt(t, Forever)
}

func (r Reconstructor) fallback(t *domain.Ticket) (domain.TicketState, error) {
	if initial, ok := eventlog.InitialState(t); ok {
		return initial, nil
	}
	if r.Policy == FallbackStrict || t.CurrentState == "" {
		return "", fmt.Errorf("ticket %s: %w", t.ID, ErrStateUnknown)
	}
	return t.CurrentState, nil
}

// StatesAt answers StateAt for many cutoffs with a single descending scan of
// the history. Results are in the order of cutoffs.
func (r Reconstructor) StatesAt(t *domain.Ticket, cutoffs []time.Time) ([]domain.TicketState, error) {
	order := make([]int, len(cutoffs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return cutoffs[order[a]].After(cutoffs[order[b]])
	})

	// changes holds state changes with a target, most recent first.
	changes := make([]domain.HistoryEvent, 0, len(t.History))
	for e := range eventlog.EventsUpTo(t, Forever) {
		if sc, ok := e.StateChange(); ok && sc.To != "" {
			changes = append(changes, e)
		}
	}

	out := make([]domain.TicketState, len(cutoffs))
	pos := 0
	for _, idx := range order {
		cutoff := cutoffs[idx]
		for pos < len(changes) && !changes[pos].Timestamp.Before(cutoff) {
			pos++
		}
		if pos < len(changes) {
			sc, _ := changes[pos].StateChange()
			out[idx] = sc.To
			continue
		}
		// no change precedes this cutoff, nor any earlier one
		state, err := r.fallback(t)
		if err != nil {
			return nil, err
		}
		out[idx] = state
	}
	return out, nil
}

// WasActiveDuring reports whether the ticket existed and was not closed at some
// point of w, judged by the denormalized close boundary only. Earlier
// close/reopen cycles are ignored, so tickets that closed and reopened may be
// counted active during a gap in which they were actually closed.
func WasActiveDuring(t *domain.Ticket, w Window) bool {
	if !t.CreatedAt.Before(w.End) {
		return false
	}
	return t.ClosedAt == nil || !t.ClosedAt.Before(w.Start)
}
