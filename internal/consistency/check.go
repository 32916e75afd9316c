// Package consistency compares a ticket's denormalized fields with the values
// its history implies. It only detects; it never repairs.
package consistency

import (
	"strconv"
	"time"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/eventlog"
	apperrors "github.com/Jessir1108/Capta-Tickets/pkg/util"
)

// Field names used in mismatches.
const (
	FieldReopenCount  = "reopenCount"
	FieldClosedAt     = "closedAt"
	FieldCurrentState = "currentState"
)

// ReopenCheck compares the stored reopen count with the one derived from the
// history.
type ReopenCheck struct {
	TicketID     string `json:"ticket_id"`
	Denormalized int    `json:"denormalized"`
	Derived      int    `json:"derived"`
	Consistent   bool   `json:"consistent"`
}

// VerifyReopenCount derives the reopen count and compares it with t.ReopenCount.
func VerifyReopenCount(t *domain.Ticket) ReopenCheck {
	derived := eventlog.DerivedReopenCount(t)
	return ReopenCheck{
		TicketID:     t.ID,
		Denormalized: t.ReopenCount,
		Derived:      derived,
		Consistent:   derived == t.ReopenCount,
	}
}

// Mismatch is one denormalized field that disagrees with the history.
type Mismatch struct {
	Field        string `json:"field"`
	Denormalized string `json:"denormalized"`
	Derived      string `json:"derived"`
}

// Report is the full consistency verdict for one ticket.
type Report struct {
	TicketID   string           `json:"ticket_id"`
	Reopen     ReopenCheck      `json:"reopen"`
	Mismatches []Mismatch       `json:"mismatches,omitempty"`
	Issues     []eventlog.Issue `json:"issues,omitempty"`
}

// Consistent reports whether every checked field agrees with the history.
func (r Report) Consistent() bool { return len(r.Mismatches) == 0 }

// Malformed reports whether the history itself has data-quality issues.
func (r Report) Malformed() bool { return len(r.Issues) > 0 }

// Errors renders the findings as domain errors for transport.
func (r Report) Errors() []*apperrors.DomainError {
	out := make([]*apperrors.DomainError, 0, len(r.Mismatches)+len(r.Issues))
	for _, m := range r.Mismatches {
		out = append(out, apperrors.NewInconsistentState(r.TicketID, m.Field, m.Denormalized, m.Derived))
	}
	for _, issue := range r.Issues {
		out = append(out, issue.Err())
	}
	return out
}

// Check verifies reopen count, close timestamp and current state against the
// projection of the history. State-dependent fields are compared only when the
// history determines the state.
func Check(t *domain.Ticket) Report {
	p := eventlog.Project(t)
	r := Report{
		TicketID: t.ID,
		Reopen:   VerifyReopenCount(t),
		Issues:   eventlog.Validate(t),
	}
	if !r.Reopen.Consistent {
		r.Mismatches = append(r.Mismatches, Mismatch{
			Field:        FieldReopenCount,
			Denormalized: strconv.Itoa(r.Reopen.Denormalized),
			Derived:      strconv.Itoa(r.Reopen.Derived),
		})
	}
	if !p.StateDerived {
		return r
	}
	if t.CurrentState != p.CurrentState {
		r.Mismatches = append(r.Mismatches, Mismatch{
			Field:        FieldCurrentState,
			Denormalized: string(t.CurrentState),
			Derived:      string(p.CurrentState),
		})
	}
	if !sameInstant(t.ClosedAt, p.ClosedAt) {
		r.Mismatches = append(r.Mismatches, Mismatch{
			Field:        FieldClosedAt,
			Denormalized: formatInstant(t.ClosedAt),
			Derived:      formatInstant(p.ClosedAt),
		})
	}
	return r
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func formatInstant(ts *time.Time) string {
	if ts == nil {
		return "null"
	}
	return ts.UTC().Format(time.RFC3339)
}
