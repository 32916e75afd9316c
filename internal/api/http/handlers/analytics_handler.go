package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Jessir1108/Capta-Tickets/internal/api/dto"
	"github.com/Jessir1108/Capta-Tickets/internal/service"
	"github.com/Jessir1108/Capta-Tickets/internal/temporal"
)

// AnalyticsHandler serves the historical ticket queries.
type AnalyticsHandler struct {
	engine *service.QueryEngine
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(engine *service.QueryEngine) *AnalyticsHandler {
	return &AnalyticsHandler{engine: engine}
}

func windowEcho(w temporal.Window) dto.WindowEcho {
	return dto.WindowEcho{Start: w.Start, End: w.End}
}

// windowAndFilters parses the parameters shared by windowed queries.
func windowAndFilters(c *fiber.Ctx) (temporal.Window, service.Filters, error) {
	w, err := parseWindow(c)
	if err != nil {
		return w, service.Filters{}, err
	}
	f, err := parseFilters(c)
	return w, f, err
}

// Cases GET /v1/analytics/cases.
func (h *AnalyticsHandler) Cases(c *fiber.Ctx) error {
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
	res, err := h.engine.ListCases(c.UserContext(), w, f, service.CaseListOptions{Limit: limit, Sort: order})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseListResponse(w.Start, w.End, res)})
}

// Reopenings GET /v1/analytics/reopenings.
func (h *AnalyticsHandler) Reopenings(c *fiber.Ctx) error {
	f, err := parseFilters(c)
	if err != nil {
		return err
	}
	totals, err := h.engine.CountReopenings(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": totals})
}

// ReopeningsInWindow GET /v1/analytics/reopenings/window.
func (h *AnalyticsHandler) ReopeningsInWindow(c *fiber.Ctx) error {
	w, f, err := windowAndFilters(c)
	if err != nil {
		return err
	}
	n, err := h.engine.CountReopeningsInWindow(c.UserContext(), w, f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CountResponse{Window: windowEcho(w), Count: n}})
}

// Entries GET /v1/analytics/entries.
func (h *AnalyticsHandler) Entries(c *fiber.Ctx) error {
	w, f, err := windowAndFilters(c)
	if err != nil {
		return err
	}
	n, err := h.engine.CountEntries(c.UserContext(), w, f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CountResponse{Window: windowEcho(w), Count: n}})
}

// Closures GET /v1/analytics/closures.
func (h *AnalyticsHandler) Closures(c *fiber.Ctx) error {
	w, f, err := windowAndFilters(c)
	if err != nil {
		return err
	}
	n, err := h.engine.CountClosures(c.UserContext(), w, f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CountResponse{Window: windowEcho(w), Count: n}})
}

// Actions GET /v1/analytics/actions.
func (h *AnalyticsHandler) Actions(c *fiber.Ctx) error {
	w, f, err := windowAndFilters(c)
	if err != nil {
		return err
	}
	requested, err := parseLimit(c)
	if err != nil {
		return err
	}
	events, err := h.engine.ListActions(c.UserContext(), w, f, requested)
	if err != nil {
		return err
	}
	items := make([]dto.ActionItem, 0, len(events))
	for _, e := range events {
		items = append(items, dto.NewActionItem(e))
	}
	return c.JSON(fiber.Map{"data": dto.ActionListResponse{
		Window:  windowEcho(w),
		Limit:   h.engine.ActionLimit(requested),
		Actions: items,
	}})
}

// Summary GET /v1/analytics/summary.
func (h *AnalyticsHandler) Summary(c *fiber.Ctx) error {
	w, f, err := windowAndFilters(c)
	if err != nil {
		return err
	}
	s, err := h.engine.Summary(c.UserContext(), w, f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": s})
}

// Classifiers GET /v1/analytics/classifiers.
func (h *AnalyticsHandler) Classifiers(c *fiber.Ctx) error {
	w, err := parseWindow(c)
	if err != nil {
		return err
	}
	top, err := parseLimit(c)
	if err != nil {
		return err
	}
	buckets, err := h.engine.TicketsByClassifier(c.UserContext(), w, c.Query("dimension"), top)
	if err != nil {
		return err
	}
	if buckets == nil {
		buckets = []service.ClassifierCount{}
	}
	return c.JSON(fiber.Map{"data": buckets})
}

// Trend GET /v1/analytics/trend.
func (h *AnalyticsHandler) Trend(c *fiber.Ctx) error {
	w, f, err := windowAndFilters(c)
	if err != nil {
		return err
	}
	days, err := h.engine.CreationTrend(c.UserContext(), w, f)
	if err != nil {
		return err
	}
	if days == nil {
		days = []service.DailyCount{}
	}
	return c.JSON(fiber.Map{"data": days})
}

// ReopenStats GET /v1/analytics/reopen-stats.
func (h *AnalyticsHandler) ReopenStats(c *fiber.Ctx) error {
	f, err := parseFilters(c)
	if err != nil {
		return err
	}
	s, err := h.engine.ReopenStats(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": s})
}

// ResolutionTime GET /v1/analytics/resolution-time.
func (h *AnalyticsHandler) ResolutionTime(c *fiber.Ctx) error {
	w, f, err := windowAndFilters(c)
	if err != nil {
		return err
	}
	s, err := h.engine.ResolutionTime(c.UserContext(), w, f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": s})
}
