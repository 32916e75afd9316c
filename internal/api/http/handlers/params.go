package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/repository"
	"github.com/Jessir1108/Capta-Tickets/internal/service"
	"github.com/Jessir1108/Capta-Tickets/internal/temporal"
	apperrors "github.com/Jessir1108/Capta-Tickets/pkg/util"
)

// parseTime accepts RFC3339 or a bare YYYY-MM-DD, read as midnight UTC. A
// '+' offset left unencoded in the URL arrives as a space and is restored.
func parseTime(val string) (time.Time, bool) {
	val = strings.Replace(val, " ", "+", 1)
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.DateOnly, val); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func requireTime(c *fiber.Ctx, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, apperrors.NewValidationError(key+" required", map[string]any{"param": key})
	}
	t, ok := parseTime(raw)
	if !ok {
		return time.Time{}, apperrors.NewValidationError("invalid "+key, map[string]any{"param": key, "value": raw})
	}
	return t, nil
}

// parseWindow reads the start and end query parameters.
func parseWindow(c *fiber.Ctx) (temporal.Window, error) {
	start, err := requireTime(c, "start")
	if err != nil {
		return temporal.Window{}, err
	}
	end, err := requireTime(c, "end")
	if err != nil {
		return temporal.Window{}, err
	}
	return temporal.Window{Start: start, End: end}, nil
}

func parseFilters(c *fiber.Ctx) (service.Filters, error) {
	f := service.Filters{
		State:      domain.TicketState(c.Query("state")),
		Classifier: c.Query("classifier"),
		Dimension:  c.Query("dimension"),
	}
	if f.State == "" {
		return f, nil
	}
	for _, known := range domain.KnownStates {
		if f.State == known {
			return f, nil
		}
	}
	return f, apperrors.NewValidationError("unknown state", map[string]any{"state": f.State})
}

func parseLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperrors.NewValidationError("limit must be a positive integer", map[string]any{"limit": raw})
	}
	return n, nil
}

func parseSort(c *fiber.Ctx) (repository.SortOrder, error) {
	switch raw := c.Query("sort"); raw {
	case "":
		return repository.SortNone, nil
	case "created_asc":
		return repository.SortCreatedAsc, nil
	case "created_desc":
		return repository.SortCreatedDesc, nil
	default:
		return repository.SortNone, apperrors.NewValidationError("sort must be created_asc or created_desc", map[string]any{"sort": raw})
	}
}
