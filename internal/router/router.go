package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oku-edu/oku-go-api/internal/config"
	"github.com/oku-edu/oku-go-api/internal/handler"
)

// Dependencies bundles the handlers the router wires up.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	RubricHandler     *handler.RubricHandler
	JWTMiddleware     fiber.Handler
}

// Register attaches every route exposed by the API.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1", deps.JWTMiddleware)

	api.Post("/submissions", deps.SubmissionHandler.Create)
	api.Get("/submissions/:id", deps.SubmissionHandler.Get)
	api.Get("/submissions/:id/result", deps.SubmissionHandler.GetResult)

	api.Post("/rubrics", deps.RubricHandler.Create)
	api.Get("/rubrics/:id", deps.RubricHandler.Get)
}
