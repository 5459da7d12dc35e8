package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/alerts"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/app"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/dashboard"
	jobmetrics "github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/jobs"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/observability"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/cache"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/db"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	registry := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(registry.Registerer())
	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: registry.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	alertsRepo := alerts.NewRepository(pool)
	dashboardService := dashboard.NewService(
		dashboard.NewRepository(pool),
		alertsRepo,
		dashboard.NewCache(redisClient, cfg.DashboardCacheTTL),
		logger,
	)

	escalateJob := jobs.NewFaultEscalateJob(reports.NewRepository(pool), alertsRepo, dashboardService, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), cfg.IdempotencyRetention, logger, metrics)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask()
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskFaultEscalate, Handler: escalateJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.IdempotencyCleanupCron, Task: cleanupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
