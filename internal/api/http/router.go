package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	TicketSLA      *handlers.TicketSLAHandler
	Notifications  *handlers.NotificationsHandler
	Events         *handlers.EventsHandler
	AuthMiddleware *auth.Middleware
	MetricsHandler http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.MetricsHandler))
	}

	v1 := app.Group("/v1", cfg.AuthMiddleware.Handle)
	v1.Get("/tickets/:id/sla", cfg.TicketSLA.GetSLA)
	v1.Post("/tickets/:id/sla/recompute", cfg.TicketSLA.Recompute)

	v1.Get("/notifications", cfg.Notifications.ListNotifications)
	v1.Post("/notifications/bulk-delivered", cfg.Notifications.BulkMarkDelivered)
	v1.Post("/notifications/:id/delivered", cfg.Notifications.MarkDelivered)

	internal := app.Group("/internal", cfg.AuthMiddleware.Handle)
	internal.Post("/events/ticket", cfg.Events.IngestTicketEvent)
}
