package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/forecast-tracker/internal/api/http"
	"github.com/i474232898/forecast-tracker/internal/config"
	"github.com/i474232898/forecast-tracker/internal/metrics"
	"github.com/i474232898/forecast-tracker/internal/scheduler"
	"github.com/i474232898/forecast-tracker/internal/store"
	"github.com/i474232898/forecast-tracker/internal/weather"
	"github.com/i474232898/forecast-tracker/internal/weather/providers"
)

const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := setupLogger(cfg.Env)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	snapshots, err := store.OpenSQLite(cfg.DBPath, cfg.SnapshotRetention)
	if err != nil {
		log.Fatalf("failed to open snapshot database: %v", err)
	}
	defer snapshots.Close()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	provider := providers.NewOpenMeteoProvider(httpClient, cfg.OpenMeteoBaseURL)

	intervals := weather.Intervals{
		Fine:   cfg.FineInterval,
		Coarse: cfg.CoarseInterval,
	}
	if err := provider.CheckIntervals(intervals); err != nil {
		log.Fatalf("unsupported forecast intervals: %v", err)
	}
	logger.Info("Forecast provider configured",
		"provider", provider.Name(),
		"fine", intervals.Fine.String(),
		"coarse", intervals.Coarse.String(),
	)

	service := weather.NewService(logger, store.NewTrackingTable(), provider, snapshots, appMetrics, weather.Options{
		Intervals:    intervals,
		ForecastDays: cfg.ForecastDays,
		Location:     cfg.Location,
	})
	service.Restore(context.Background())

	// The first refresh runs right away, after the snapshot is restored.
	sched := scheduler.New(logger, service, cfg.FetchInterval, cfg.FetchInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "forecast-tracker",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		status, dbStatus := fiber.StatusOK, "ok"
		if err := snapshots.Ping(c.UserContext()); err != nil {
			status, dbStatus = fiber.StatusServiceUnavailable, "unavailable"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":   dbStatus,
			"service":  "forecast-tracker",
			"tracking": len(service.List()),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()
	logger.Info("Application started", "port", cfg.Port)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("Shutdown signal received. Stopping application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		}))
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelWarn,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		log.Warn("Unknown APP_ENV, using JSON info logging", slog.String("available_envs", "local, development, production"))
	}

	return log
}
