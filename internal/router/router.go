package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-grader-api/internal/config"
	"github.com/noah-isme/essay-grader-api/internal/database"
	"github.com/noah-isme/essay-grader-api/internal/handler"
	"github.com/noah-isme/essay-grader-api/internal/middleware"
	"github.com/noah-isme/essay-grader-api/internal/models"
	"github.com/noah-isme/essay-grader-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AccountHandler     *handler.AccountHandler
	ThemeHandler       *handler.ThemeHandler
	SubmissionHandler  *handler.SubmissionHandler
	WebhookHandler     *handler.WebhookHandler
	AdminHandler       *handler.AdminHandler
	JWTMiddleware      fiber.Handler
	PasswordResetLimit fiber.Handler
	HealthChecks       map[string]database.Check
	Logger             zerolog.Logger
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks, deps.Logger))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api")

	if deps.AccountHandler != nil {
		deps.AccountHandler.Register(api, jwtMiddleware, deps.PasswordResetLimit)
	}

	if deps.ThemeHandler != nil {
		deps.ThemeHandler.Register(api.Group("/themes"), jwtMiddleware)
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions", jwtMiddleware))
		deps.SubmissionHandler.RegisterHistory(api.Group("/history", jwtMiddleware))
	}

	if deps.WebhookHandler != nil {
		deps.WebhookHandler.Register(api.Group("/webhooks"))
	}

	if deps.AdminHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		deps.AdminHandler.Register(admin)
	}
}
