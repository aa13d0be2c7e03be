package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/mfenerich/meteoanalytics/internal/aemet"
	httpapi "github.com/mfenerich/meteoanalytics/internal/api/http"
	"github.com/mfenerich/meteoanalytics/internal/config"
	"github.com/mfenerich/meteoanalytics/internal/meteo"
	"github.com/mfenerich/meteoanalytics/internal/scheduler"
	"github.com/mfenerich/meteoanalytics/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()
	sugar := zlog.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cache store: Postgres when configured, in-memory otherwise.
	var cache meteo.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, sugar)
		if err != nil {
			sugar.Fatalw("failed to open postgres cache store", "error", err)
		}
		defer pg.Close()
		cache = pg
	} else {
		sugar.Warn("DATABASE_URL not set; using in-memory cache store")
		cache = store.NewMemoryStore()
	}

	// Upstream client with shared outbound HTTP client.
	client := aemet.NewClient(aemet.Config{
		BaseURL:    cfg.AEMETBaseURL,
		APIKey:     cfg.AEMETAPIKey,
		Client:     &http.Client{Timeout: cfg.HTTPTimeout},
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}, sugar)

	// Core service resolving requests against cache and upstream.
	service := meteo.NewService(cache, client, cfg.CacheRetention, sugar)

	// Optional cache-warming prefetch.
	sched := scheduler.New(cfg.PrefetchStations, cfg.PrefetchInterval, cfg.PrefetchWindow, service, sugar)
	if err := sched.Start(); err != nil {
		sugar.Fatalw("failed to start scheduler", "error", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "meteoanalytics",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          45 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "meteoanalytics",
		})
	})

	httpapi.RegisterRoutes(app, service, cfg.DefaultTimezone, sugar)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			sugar.Errorw("fiber server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		sugar.Errorw("error during shutdown", "error", err)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
