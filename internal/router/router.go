package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/testem-api/internal/config"
	"github.com/noah-isme/testem-api/internal/handler"
	"github.com/noah-isme/testem-api/internal/middleware"
	"github.com/noah-isme/testem-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssistantHandler *handler.AssistantHandler
	DocumentHandler  *handler.DocumentHandler
	ExamHandler      *handler.ExamHandler
	HealthProbes     map[string]handler.HealthProbe
	JWTMiddleware    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AssistantHandler != nil {
		deps.AssistantHandler.Register(api.Group("/assistants", jwtMiddleware))
	}

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.Register(api.Group("/documents", jwtMiddleware))
	}

	if deps.ExamHandler != nil {
		exams := api.Group("/exams", jwtMiddleware)
		if cfg.GenerateRateLimit > 0 {
			// Generation and grading each hold an AI thread open; reads are not limited.
			limiter := middleware.RateLimit("exams", cfg.GenerateRateLimit, time.Minute)
			exams.Use(func(c *fiber.Ctx) error {
				if c.Method() != fiber.MethodPost {
					return c.Next()
				}
				return limiter(c)
			})
		}
		deps.ExamHandler.Register(exams)
	}
}
