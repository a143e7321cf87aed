package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/promptlab-api/internal/config"
	"github.com/noah-isme/promptlab-api/internal/handler"
	"github.com/noah-isme/promptlab-api/internal/middleware"
	"github.com/noah-isme/promptlab-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ProjectHandler      *handler.ProjectHandler
	TemplateHandler     *handler.TemplateHandler
	AIHandler           *handler.AIHandler
	UserHandler         *handler.UserHandler
	ActivityHandler     *handler.ActivityHandler
	EventHandler        *handler.EventHandler
	NotificationHandler *handler.NotificationHandler
	ReportHandler       *handler.ReportHandler
	SearchHandler       *handler.SearchHandler
	JWTMiddleware       fiber.Handler
	HealthChecks        []handler.DependencyCheck
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	secured := api.Group("", jwtMiddleware)

	if deps.UserHandler != nil {
		deps.UserHandler.Register(secured.Group("/users"))
	}
	if deps.TemplateHandler != nil {
		deps.TemplateHandler.Register(secured.Group("/templates"))
	}
	if deps.ProjectHandler != nil {
		projects := secured.Group("/projects")
		// Approve has its own, stricter budget than /ai.
		projects.Post("/:id/approve", middleware.RateLimit(middleware.RateLimitPolicy{
			Name:   "approve",
			Max:    cfg.ApproveRateLimit,
			Window: cfg.ApproveRateWindow,
		}))
		deps.ProjectHandler.Register(projects)
	}
	if deps.AIHandler != nil {
		ai := secured.Group("/ai", middleware.RateLimit(middleware.RateLimitPolicy{
			Name:   "ai",
			Max:    cfg.AIRateLimit,
			Window: cfg.AIRateWindow,
		}))
		deps.AIHandler.Register(ai)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(secured.Group("/activity", middleware.RequireRole(middleware.AuthRoleTeacher)))
	}
	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(secured.Group("/reports", middleware.RequireRole(middleware.AuthRoleTeacher)))
	}
	if deps.SearchHandler != nil {
		deps.SearchHandler.Register(secured.Group("/search"))
	}
	if deps.EventHandler != nil {
		deps.EventHandler.Register(secured.Group("/events"))
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(secured.Group("/notifications"))
	}
}
