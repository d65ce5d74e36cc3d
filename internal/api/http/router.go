package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/msp-workflow/internal/api/http/handlers"
	"github.com/fieldops/msp-workflow/internal/auth"
	"github.com/fieldops/msp-workflow/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Engineers      *handlers.EngineersHandler
	Teams          *handlers.TeamsHandler
	Workflows      *handlers.WorkflowsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	v1 := app.Group("/api/v1")
	v1.Get("/health/live", cfg.Health.Live)
	v1.Get("/health/ready", cfg.Health.Ready)

	api := v1.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	staff := auth.RequireStaffRole()
	leads := auth.RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/transitions", staff, cfg.Tickets.ExecuteTransition)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/tasks", staff, cfg.Tickets.AddTask)
	tickets.Post("/:id/tasks/:taskId/complete", staff, cfg.Tickets.CompleteTask)
	tickets.Get("/:id/sla", staff, cfg.Tickets.SLAStatus)

	api.Get("/engineers/:id/slots", staff, cfg.Engineers.Slots)
	api.Get("/teams/:id/suggestion", staff, cfg.Teams.Suggestion)

	workflows := api.Group("/workflows", staff)
	workflows.Get("/", cfg.Workflows.List)
	workflows.Get("/:id", cfg.Workflows.Get)
	workflows.Post("/", leads, cfg.Workflows.Create)
	workflows.Put("/:id", leads, cfg.Workflows.Update)
}
