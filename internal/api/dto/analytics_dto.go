package dto

import (
	"time"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/service"
)

// WindowEcho reports the window a query was answered for.
type WindowEcho struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CaseItem is one ticket returned by the cases query.
type CaseItem struct {
	TicketSummary
	StateAtStart domain.TicketState `json:"state_at_start"`
	StateAtEnd   domain.TicketState `json:"state_at_end"`
}

// CaseListResponse answers GET /v1/analytics/cases.
type CaseListResponse struct {
	Window    WindowEcho          `json:"window"`
	Total     int                 `json:"total"`
	Truncated bool                `json:"truncated"`
	Cases     []CaseItem          `json:"cases"`
	Issues    []service.DataIssue `json:"issues"`
}

// NewCaseListResponse maps a service result.
func NewCaseListResponse(start, end time.Time, res service.CaseList) CaseListResponse {
	out := CaseListResponse{
		Window:    WindowEcho{Start: start, End: end},
		Total:     res.Total,
		Truncated: res.Truncated,
		Cases:     make([]CaseItem, 0, len(res.Cases)),
		Issues:    res.Issues,
	}
	if out.Issues == nil {
		out.Issues = []service.DataIssue{}
	}
	for i := range res.Cases {
		out.Cases = append(out.Cases, CaseItem{
			TicketSummary: NewTicketSummary(&res.Cases[i].Ticket),
			StateAtStart:  res.Cases[i].StateAtStart,
			StateAtEnd:    res.Cases[i].StateAtEnd,
		})
	}
	return out
}

// CountResponse answers the single-number queries.
type CountResponse struct {
	Window WindowEcho `json:"window"`
	Count  int64      `json:"count"`
}

// ActionItem is one event of the actions listing.
type ActionItem struct {
	TicketID    string             `json:"ticket_id"`
	TicketTitle string             `json:"ticket_title,omitempty"`
	Index       int                `json:"index"`
	Timestamp   time.Time          `json:"timestamp"`
	Action      domain.ActionKind  `json:"action"`
	UserID      string             `json:"user_id,omitempty"`
	FromState   domain.TicketState `json:"from_state,omitempty"`
	ToState     domain.TicketState `json:"to_state,omitempty"`
	AssignedTo  string             `json:"assigned_to,omitempty"`
	Comment     string             `json:"comment,omitempty"`
}

// NewActionItem flattens a tagged event.
func NewActionItem(e domain.TicketEvent) ActionItem {
	item := ActionItem{
		TicketID:    e.TicketID,
		TicketTitle: e.TicketTitle,
		Index:       e.Index,
		Timestamp:   e.Event.Timestamp,
		Action:      e.Event.Kind(),
		UserID:      e.Event.UserID,
		Comment:     e.Event.Comment,
	}
	switch a := e.Event.Action.(type) {
	case domain.StateChange:
		item.FromState, item.ToState = a.From, a.To
	case domain.Assignment:
		item.AssignedTo = a.AssignedTo
	}
	return item
}

// ActionListResponse answers GET /v1/analytics/actions.
type ActionListResponse struct {
	Window  WindowEcho   `json:"window"`
	Limit   int          `json:"limit"`
	Actions []ActionItem `json:"actions"`
}
