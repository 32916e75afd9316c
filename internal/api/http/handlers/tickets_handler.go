package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Jessir1108/Capta-Tickets/internal/api/dto"
	"github.com/Jessir1108/Capta-Tickets/internal/consistency"
	"github.com/Jessir1108/Capta-Tickets/internal/repository"
	"github.com/Jessir1108/Capta-Tickets/internal/service"
	apperrors "github.com/Jessir1108/Capta-Tickets/pkg/util"
)

// TicketsHandler serves per-ticket inspection endpoints.
type TicketsHandler struct {
	engine  *service.QueryEngine
	checker *consistency.Checker
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(engine *service.QueryEngine, checker *consistency.Checker) *TicketsHandler {
	return &TicketsHandler{engine: engine, checker: checker}
}

// List GET /v1/tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	w, f, err := windowAndFilters(c)
	if err != nil {
		return err
	}
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	order, err := parseSort(c)
	if err != nil {
		return err
	}
	tickets, err := h.engine.ListTickets(c.UserContext(), w, f, service.TicketListOptions{Limit: limit, Sort: order})
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{Start: w.Start, End: w.End, Tickets: items}})
}

// StateAt GET /v1/tickets/:id/state. Without at, the current instant is used.
func (h *TicketsHandler) StateAt(c *fiber.Ctx) error {
	id := c.Params("id")
	at := time.Now().UTC()
	if raw := c.Query("at"); raw != "" {
		parsed, err := requireTime(c, "at")
		if err != nil {
			return err
		}
		at = parsed
	}
	state, err := h.engine.StateAt(c.UserContext(), id, at)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StateAtResponse{TicketID: id, At: at, State: state}})
}

// Consistency GET /v1/tickets/:id/consistency.
func (h *TicketsHandler) Consistency(c *fiber.Ctx) error {
	id := c.Params("id")
	report, err := h.checker.CheckTicket(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return err
	}

	findings := make([]dto.ErrorResponse, 0)
	for _, e := range report.Errors() {
		findings = append(findings, dto.ErrorResponse{Code: e.Code, Message: e.Message, Details: e.Details})
	}
	return c.JSON(fiber.Map{"data": dto.ConsistencyResponse{
		TicketID:   report.TicketID,
		Consistent: report.Consistent(),
		Malformed:  report.Malformed(),
		Reopen: dto.ReopenCheck{
			Denormalized: report.Reopen.Denormalized,
			Derived:      report.Reopen.Derived,
			Consistent:   report.Reopen.Consistent,
		},
		Findings: findings,
	}})
}
