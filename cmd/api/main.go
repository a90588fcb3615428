// Package main is the entrypoint for the Pulse telemetry API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aurelius/pulse/internal/aggregator"
	"github.com/aurelius/pulse/internal/cache"
	"github.com/aurelius/pulse/internal/config"
	"github.com/aurelius/pulse/internal/handler"
	"github.com/aurelius/pulse/internal/metrics"
	"github.com/aurelius/pulse/internal/middleware"
	"github.com/aurelius/pulse/internal/repository"
	"github.com/aurelius/pulse/internal/server"
	"github.com/aurelius/pulse/internal/sweeper"
	"github.com/aurelius/pulse/internal/tracker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Durable event log
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Hot counter store and ingest stream
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	cacheClient.SetCounterTTLs(cfg.HotBucketTTL, cfg.RollupTTL())
	logger.Info("connected to Redis")

	// Self-instrumentation
	recorder := metrics.NewProm(prometheus.DefaultRegisterer)

	// Stores
	eventRepo := repository.NewEventRepository(repo)
	integrationRepo := repository.NewIntegrationRepository(repo)
	syncLogRepo := repository.NewSyncLogRepository(repo)

	// Tracking pipeline: tracker -> hot counters + stream -> worker -> Postgres
	publisher := tracker.NewPublisher(cacheClient.Client(), logger, recorder)
	trk := tracker.New(cacheClient, publisher, logger, recorder)
	trk.SetQueueSize(cfg.TrackQueueSize)
	trk.SetDispatchers(cfg.TrackWorkers)
	trk.SetDispatchTimeout(cfg.TrackTimeout)
	if err := trk.Start(); err != nil {
		logger.Error("failed to start tracker", "error", err)
		os.Exit(1)
	}

	worker := tracker.NewWorker(cacheClient.Client(), eventRepo, logger, tracker.NewConsumerID(), recorder)
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	go func() {
		if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("ingest worker exited", "error", err)
		}
	}()

	// Query path
	agg := aggregator.New(cacheClient, eventRepo, integrationRepo, syncLogRepo, logger, recorder)
	agg.SetTrendThreshold(cfg.TrendThresholdPoints)

	// Retention
	swp := sweeper.New(eventRepo, logger, recorder)
	swp.SetRetention(time.Duration(cfg.RetentionDays) * 24 * time.Hour)
	swp.SetInterval(cfg.SweepInterval)

	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	if cfg.SweepEnabled {
		go func() {
			if err := swp.Run(sweepCtx); err != nil && sweepCtx.Err() == nil {
				logger.Error("retention sweeper exited", "error", err)
			}
		}()
	}

	// Handlers
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	eventsHandler := handler.NewEventsHandler(trk, logger, cfg.MaxRequestBodySize)
	metricsHandler := handler.NewMetricsHandler(agg, logger)
	adminHandler := handler.NewAdminHandler(swp, logger)

	r := setupRouter(healthHandler, eventsHandler, metricsHandler, adminHandler, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// LIFO: the tracker drains first so the worker still consumes its
	// final publishes, then the worker finishes its in-flight batch.
	srv.OnShutdown("sweeper", func(ctx context.Context) error {
		sweepCancel()
		return nil
	})
	srv.OnShutdown("ingest-worker", worker.Shutdown)
	srv.OnShutdown("tracker", trk.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"sweep_enabled", cfg.SweepEnabled,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	healthHandler *handler.HealthHandler,
	eventsHandler *handler.EventsHandler,
	metricsHandler *handler.MetricsHandler,
	adminHandler *handler.AdminHandler,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	if origins := cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = origins
		r.Use(middleware.CORS(corsCfg))
	}

	// Probes and exposition (no auth)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	auth := middleware.ServiceAuth(cfg.ServiceTokenHash, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth)

		r.Post("/events", eventsHandler.TrackEvent)
		r.Get("/providers/{provider}/metrics", metricsHandler.GetProviderMetrics)
		r.Get("/providers/{provider}/daily", metricsHandler.GetProviderDailySeries)
		r.Get("/users/{userID}/integrations/{integrationID}/metrics", metricsHandler.GetUserIntegrationMetrics)
		r.Get("/system/metrics", metricsHandler.GetSystemMetrics)
		r.Get("/errors/top", metricsHandler.GetTopErrors)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth)

		r.Post("/cleanup", adminHandler.Cleanup)
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
