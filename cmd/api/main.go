package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/jeovahfialho/tradejournal/internal/api"
	"github.com/jeovahfialho/tradejournal/internal/auth"
	"github.com/jeovahfialho/tradejournal/internal/config"
	"github.com/jeovahfialho/tradejournal/internal/ingestion"
	"github.com/jeovahfialho/tradejournal/internal/service"
	"github.com/jeovahfialho/tradejournal/internal/storage"
	pkglogger "github.com/jeovahfialho/tradejournal/pkg/logger"
	"github.com/jeovahfialho/tradejournal/pkg/tracing"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("configuration error: ", err)
	}

	if err := pkglogger.Init(cfg.LogLevel, cfg.Development()); err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer pkglogger.Close()

	if err := tracing.Init(cfg.TracingEnabled, version); err != nil {
		pkglogger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := storage.OpenDatabase(cfg)
	if err != nil {
		pkglogger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		pkglogger.Fatal("failed to migrate database", zap.Error(err))
	}

	objs, err := storage.OpenObjects(ctx, cfg)
	if err != nil {
		pkglogger.Fatal("failed to open object storage", zap.Error(err))
	}

	summaryCache := storage.OpenCache(cfg)
	defer summaryCache.Close()

	// Services
	analytics := service.NewAnalyticsService(db.Repo, summaryCache)
	attachments := service.NewAttachmentManager(db.Repo, objs.Store).WithLinkTTL(cfg.SignedURLTTL)
	trades := service.NewTradeService(db.Repo, attachments, analytics)

	// Ingestion
	parser := ingestion.NewParser(100, cfg.Workers)
	loader := ingestion.NewLoader(db.Repo)
	ingestionService := service.NewIngestionService(parser, loader, analytics)

	// Handler
	handler := api.NewHandler(
		trades,
		ingestionService,
		objs.Files,
		map[string]api.Checker{
			"database": db,
			"objects":  checkFunc(objs.HealthCheck),
			"cache":    summaryCache,
		},
		version,
	)

	// Fiber app
	app := fiber.New(fiber.Config{
		Prefork:                 false,
		ServerHeader:            "Trade-Journal",
		DisableStartupMessage:   !cfg.Development(),
		AppName:                 "Trade Journal v" + version,
		ReadTimeout:             cfg.APIReadTimeout,
		WriteTimeout:            cfg.APIWriteTimeout,
		IdleTimeout:             120 * time.Second,
		ReadBufferSize:          8192,
		WriteBufferSize:         8192,
		ProxyHeader:             "X-Forwarded-For",
		EnableTrustedProxyCheck: true,
		BodyLimit:               cfg.MaxUploadBytes,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	// Setup routes
	api.SetupRoutes(app, handler, api.RouteOptions{
		Tokens:         auth.New(cfg.APIKey, cfg.TokenTTL),
		RateLimit:      cfg.RateLimit,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		pkglogger.Info("shutting down server")
		if err := app.Shutdown(); err != nil {
			pkglogger.Error("server shutdown error", zap.Error(err))
		}
	}()

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	pkglogger.Info("starting server",
		zap.String("addr", addr),
		zap.String("database", db.Driver),
		zap.String("storage", cfg.StorageDriver))

	if err := app.Listen(addr); err != nil {
		pkglogger.Fatal("server error", zap.Error(err))
	}
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}
