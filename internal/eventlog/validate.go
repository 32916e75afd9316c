package eventlog

import (
	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	apperrors "github.com/Jessir1108/Capta-Tickets/pkg/util"
)

// Issue reasons.
const (
	ReasonOutOfOrder    = "timestamp precedes previous event"
	ReasonMissingTarget = "state_change without to"
	ReasonMissingAction = "event without action"
)

// Issue is a data-quality problem attached to one event of one ticket.
type Issue struct {
	TicketID string `json:"ticket_id"`
	Index    int    `json:"event_index"`
	Reason   string `json:"reason"`
}

// Err converts the issue to a MALFORMED_HISTORY domain error.
func (i Issue) Err() *apperrors.DomainError {
	return apperrors.NewMalformedHistory(i.TicketID, i.Index, i.Reason)
}

// Validate reports chronology violations and incomplete state changes. It never
// reorders or repairs the history.
func Validate(t *domain.Ticket) []Issue {
	var issues []Issue
	for i, e := range Forward(t) {
		if e.Action == nil {
			issues = append(issues, Issue{TicketID: t.ID, Index: i, Reason: ReasonMissingAction})
		}
		if sc, ok := e.StateChange(); ok && sc.To == "" {
			issues = append(issues, Issue{TicketID: t.ID, Index: i, Reason: ReasonMissingTarget})
		}
		if i > 0 && e.Timestamp.Before(t.History[i-1].Timestamp) {
			issues = append(issues, Issue{TicketID: t.ID, Index: i, Reason: ReasonOutOfOrder})
		}
	}
	return issues
}
