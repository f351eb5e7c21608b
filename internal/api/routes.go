package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jeovahfialho/tradejournal/internal/auth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouteOptions struct {
	Tokens         auth.JWT
	RateLimit      int
	MetricsEnabled bool
}

func SetupRoutes(app *fiber.App, handler *Handler, opts RouteOptions) {
	// Global middlewares
	app.Use(RequestID())
	app.Use(ErrorHandler())

	// Health checks, no auth or rate limiting
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)

	if opts.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Signed links carry their own token
	if handler.files != nil {
		app.Get("/files/*", handler.ServeFile)
	}

	v1 := app.Group("/api/v1")
	v1.Use(PrometheusMiddleware())
	v1.Use(OwnerAuth(opts.Tokens))
	v1.Use(RateLimiter(opts.RateLimit))

	trades := v1.Group("/trades")
	trades.Post("/", handler.CreateTrade)
	trades.Get("/", handler.ListTrades)
	trades.Get("/:id", handler.GetTrade)
	trades.Put("/:id", handler.UpdateTrade)
	trades.Delete("/:id", handler.DeleteTrade)
	trades.Post("/:id/attachments", handler.UploadAttachments)
	trades.Get("/:id/attachments", handler.ListAttachments)

	v1.Get("/summary", handler.Summary)
	v1.Post("/estimate", handler.Estimate)
	v1.Post("/import", handler.ImportTrades)
}
