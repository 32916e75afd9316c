package dto

import (
	"time"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
)

// TicketSummary is the list view of a ticket.
type TicketSummary struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	CurrentState    domain.TicketState `json:"current_state"`
	AssignedTo      *string            `json:"assigned_to,omitempty"`
	Classifications map[string]string  `json:"classifications,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	ClosedAt        *time.Time         `json:"closed_at,omitempty"`
	ReopenCount     int                `json:"reopen_count"`
}

// NewTicketSummary maps a ticket to its list view.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:              t.ID,
		Title:           t.Title,
		CurrentState:    t.CurrentState,
		AssignedTo:      t.AssignedTo,
		Classifications: t.Classifications,
		CreatedAt:       t.CreatedAt,
		ClosedAt:        t.ClosedAt,
		ReopenCount:     t.ReopenCount,
	}
}

// TicketListResponse answers GET /v1/tickets.
type TicketListResponse struct {
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"`
	Tickets []TicketSummary `json:"tickets"`
}

// StateAtResponse answers GET /v1/tickets/:id/state.
type StateAtResponse struct {
	TicketID string             `json:"ticket_id"`
	At       time.Time          `json:"at"`
	State    domain.TicketState `json:"state"`
}

// ConsistencyResponse answers GET /v1/tickets/:id/consistency.
type ConsistencyResponse struct {
	TicketID   string          `json:"ticket_id"`
	Consistent bool            `json:"consistent"`
	Malformed  bool            `json:"malformed"`
	Reopen     ReopenCheck     `json:"reopen"`
	Findings   []ErrorResponse `json:"findings"`
}

// ReopenCheck mirrors the reopen count comparison.
type ReopenCheck struct {
	Denormalized int  `json:"denormalized"`
	Derived      int  `json:"derived"`
	Consistent   bool `json:"consistent"`
}

// ErrorResponse is the transport shape of a domain error.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
