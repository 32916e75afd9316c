package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/eventlog"
)

func date(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

// scenarioTicket is created on Sep 1, closed Sep 15 and reopened Sep 20.
func scenarioTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{ID: "ticket_a", CreatedAt: date(time.September, 1)}
	events := []domain.HistoryEvent{
		{Timestamp: date(time.September, 1), Action: domain.Created{}, Details: &domain.EventDetails{InitialState: domain.StateOpen}},
		{Timestamp: date(time.September, 15), Action: domain.StateChange{From: domain.StateOpen, To: domain.StateClosed}},
		{Timestamp: date(time.September, 20), Action: domain.StateChange{From: domain.StateClosed, To: domain.StateOpen}},
	}
	for _, e := range events {
		if err := eventlog.Append(ticket, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return ticket
}

func TestStateAt_Scenario(t *testing.T) {
	r := Reconstructor{}
	ticket := scenarioTicket(t)

	cases := []struct {
		cutoff time.Time
		want   domain.TicketState
	}{
		{date(time.September, 16), domain.StateClosed},
		{date(time.September, 21), domain.StateOpen},
		{date(time.September, 15), domain.StateOpen}, // change at the cutoff is excluded
		{date(time.September, 2), domain.StateOpen},
		{date(time.August, 1), domain.StateOpen},
	}
	for _, tc := range cases {
		got, err := r.StateAt(ticket, tc.cutoff)
		if err != nil {
			t.Fatalf("StateAt(%v): %v", tc.cutoff, err)
		}
		if got != tc.want {
			t.Fatalf("StateAt(%v) = %q, want %q", tc.cutoff, got, tc.want)
		}
	}
}

func TestStateNow_MatchesCurrentState(t *testing.T) {
	r := Reconstructor{Policy: FallbackStrict}
	tickets := []*domain.Ticket{scenarioTicket(t)}

	closed := &domain.Ticket{ID: "ticket_b", CreatedAt: date(time.September, 3)}
	for _, e := range []domain.HistoryEvent{
		{Timestamp: date(time.September, 3), Action: domain.Created{}, Details: &domain.EventDetails{InitialState: domain.StateOpen}},
		{Timestamp: date(time.September, 4), Action: domain.StateChange{From: domain.StateOpen, To: domain.StateInProgress}},
		{Timestamp: date(time.September, 9), Action: domain.StateChange{From: domain.StateInProgress, To: domain.StateClosed}},
		{Timestamp: date(time.September, 10), Action: domain.CommentAdded{}},
	} {
		if err := eventlog.Append(closed, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	fresh := &domain.Ticket{ID: "ticket_c", CreatedAt: date(time.September, 5)}
	if err := eventlog.Append(fresh, domain.HistoryEvent{Timestamp: date(time.September, 5), Action: domain.Created{}, Details: &domain.EventDetails{InitialState: domain.StatePending}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	tickets = append(tickets, closed, fresh)

	for _, ticket := range tickets {
		got, err := r.StateNow(ticket)
		if err != nil {
			t.Fatalf("%s: StateNow: %v", ticket.ID, err)
		}
		if got != ticket.CurrentState {
			t.Fatalf("%s: StateNow = %q, want current state %q", ticket.ID, got, ticket.CurrentState)
		}
	}
}

func TestStateAt_FallbackPolicies(t *testing.T) {
	legacy := &domain.Ticket{
		ID:           "legacy",
		CreatedAt:    date(time.January, 1),
		CurrentState: domain.StateInProgress,
		History:      []domain.HistoryEvent{{Timestamp: date(time.March, 1), Action: domain.CommentAdded{}}},
	}

	got, err := Reconstructor{Policy: FallbackCurrentState}.StateAt(legacy, date(time.February, 1))
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	if got != domain.StateInProgress {
		t.Fatalf("current-state fallback = %q, want in_progress", got)
	}

	_, err = Reconstructor{Policy: FallbackStrict}.StateAt(legacy, date(time.February, 1))
	if !errors.Is(err, ErrStateUnknown) {
		t.Fatalf("strict fallback err = %v, want ErrStateUnknown", err)
	}
}

func TestStateAt_SkipsChangeWithoutTarget(t *testing.T) {
	ticket := &domain.Ticket{
		ID: "partial",
		History: []domain.HistoryEvent{
			{Timestamp: date(time.September, 1), Action: domain.StateChange{From: domain.StateOpen, To: domain.StateInProgress}},
			{Timestamp: date(time.September, 2), Action: domain.StateChange{From: domain.StateInProgress}},
		},
	}
	got, err := Reconstructor{}.StateAt(ticket, date(time.September, 3))
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	if got != domain.StateInProgress {
		t.Fatalf("StateAt = %q, want in_progress", got)
	}
}

func TestStatesAt_MatchesStateAt(t *testing.T) {
	r := Reconstructor{}
	ticket := scenarioTicket(t)
	cutoffs := []time.Time{
		date(time.September, 21),
		date(time.August, 30),
		date(time.September, 16),
		date(time.September, 15),
		Forever,
		date(time.September, 20),
	}

	got, err := r.StatesAt(ticket, cutoffs)
	if err != nil {
		t.Fatalf("StatesAt: %v", err)
	}
	for i, cutoff := range cutoffs {
		want, err := r.StateAt(ticket, cutoff)
		if err != nil {
			t.Fatalf("StateAt: %v", err)
		}
		if got[i] != want {
			t.Fatalf("cutoff %v: StatesAt = %q, StateAt = %q", cutoff, got[i], want)
		}
	}
}

func TestWasActiveDuring_Boundaries(t *testing.T) {
	w := Window{Start: date(time.September, 1), End: date(time.October, 1)}
	closedAt := func(ts time.Time) *time.Time { return &ts }

	cases := []struct {
		name   string
		ticket domain.Ticket
		want   bool
	}{
		{"open, created inside", domain.Ticket{CreatedAt: date(time.September, 10)}, true},
		{"created exactly at end", domain.Ticket{CreatedAt: date(time.October, 1)}, false},
		{"created before, closed at start", domain.Ticket{CreatedAt: date(time.August, 1), ClosedAt: closedAt(date(time.September, 1))}, true},
		{"closed before start", domain.Ticket{CreatedAt: date(time.August, 1), ClosedAt: closedAt(date(time.August, 31))}, false},
		{"closed after end", domain.Ticket{CreatedAt: date(time.August, 1), ClosedAt: closedAt(date(time.October, 5))}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WasActiveDuring(&tc.ticket, w); got != tc.want {
				t.Fatalf("WasActiveDuring = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	if _, err := NewWindow(date(time.October, 1), date(time.September, 1)); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("reversed window err = %v, want ErrInvalidWindow", err)
	}
	w, err := NewWindow(date(time.September, 1), date(time.October, 1))
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if !w.Contains(w.Start) {
		t.Fatal("start must be included")
	}
	if w.Contains(w.End) {
		t.Fatal("end must be excluded")
	}
}

func TestParseFallbackPolicy(t *testing.T) {
	if p, err := ParseFallbackPolicy("strict"); err != nil || p != FallbackStrict {
		t.Fatalf("ParseFallbackPolicy(strict) = %v, %v", p, err)
	}
	if p, err := ParseFallbackPolicy(""); err != nil || p != FallbackCurrentState {
		t.Fatalf("ParseFallbackPolicy(\"\") = %v, %v", p, err)
	}
	if _, err := ParseFallbackPolicy("guess"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
