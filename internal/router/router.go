package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campusfix-api/internal/config"
	"github.com/noah-isme/campusfix-api/internal/handler"
	"github.com/noah-isme/campusfix-api/internal/middleware"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	ReportHandler   *handler.ReportHandler
	UserHandler     *handler.UserHandler
	UploadHandler   *handler.UploadHandler
	ActivityHandler *handler.ActivityHandler
	RealtimeHandler *handler.RealtimeHandler

	// Authenticate verifies the bearer token and loads the caller, in order.
	Authenticate []fiber.Handler
	AuthLimiter  fiber.Handler
	HealthChecks map[string]handler.DependencyCheck
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	authenticate := deps.Authenticate
	if len(authenticate) == 0 {
		authenticate = []fiber.Handler{func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication not configured")
		}}
	}
	protected := func(prefix string, extra ...fiber.Handler) fiber.Router {
		handlers := make([]fiber.Handler, 0, len(authenticate)+len(extra))
		handlers = append(handlers, authenticate...)
		handlers = append(handlers, extra...)
		return api.Group(prefix, handlers...)
	}

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"), handler.AuthGuards{
			Authenticate: authenticate,
			Limiter:      deps.AuthLimiter,
		})
	}

	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(protected("/reports"))
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(protected("/users"))
	}

	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(protected("/uploads"))
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(protected("/activity", middleware.RequireRole(models.RoleAdmin)))
	}

	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.Register(protected("/realtime"))
	}
}
