package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Jessir1108/Capta-Tickets/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Metrics     *handlers.MetricsHandler
	Analytics   *handlers.AnalyticsHandler
	Tickets     *handlers.TicketsHandler
	Classifiers *handlers.ClassifiersHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	v1 := app.Group("/v1")

	analytics := v1.Group("/analytics")
	analytics.Get("/cases", cfg.Analytics.Cases)
	analytics.Get("/reopenings", cfg.Analytics.Reopenings)
	analytics.Get("/reopenings/window", cfg.Analytics.ReopeningsInWindow)
	analytics.Get("/entries", cfg.Analytics.Entries)
	analytics.Get("/closures", cfg.Analytics.Closures)
	analytics.Get("/actions", cfg.Analytics.Actions)
	analytics.Get("/summary", cfg.Analytics.Summary)
	analytics.Get("/classifiers", cfg.Analytics.Classifiers)
	analytics.Get("/trend", cfg.Analytics.Trend)
	analytics.Get("/reopen-stats", cfg.Analytics.ReopenStats)
	analytics.Get("/resolution-time", cfg.Analytics.ResolutionTime)

	tickets := v1.Group("/tickets")
	tickets.Get("/", cfg.Tickets.List)
	tickets.Get("/:id/state", cfg.Tickets.StateAt)
	tickets.Get("/:id/consistency", cfg.Tickets.Consistency)

	classifiers := v1.Group("/classifiers")
	classifiers.Get("/", cfg.Classifiers.Tree)
	classifiers.Post("/cache/invalidate", cfg.Classifiers.InvalidateCache)
	classifiers.Get("/:id/descendants", cfg.Classifiers.Descendants)
}
