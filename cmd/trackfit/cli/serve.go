package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/actions"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/alerts"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/app"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/audit"
	audithttp "github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/audit/http"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/auth"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/dashboard"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/decoder"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/fittings"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/observability"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/cache"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/db"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/scan"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/jobs"
)

const sweepInterval = time.Minute

// Serve wires every collaborator and runs the HTTP server until ctx is done.
func Serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "trackfit_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	lockManager := shared.NewLockManager(redisClient, cfg.DispatchLockTTL)
	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	fittingStore := fittings.NewCachedStore(fittings.NewRepository(pool), redisClient, cfg.FittingCacheTTL, logger)
	decoderClient := decoder.NewClient(cfg.DecoderURL, cfg.DecoderTimeout, logger)
	resolver := scan.NewResolver(decoderClient, fittingStore, metrics, logger)

	authService := auth.NewService(auth.NewRepository(pool), sessionManager, logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager, auditLogger).ForgetOnLogout(resolver)

	reportsRepo := reports.NewRepository(pool)
	alertsRepo := alerts.NewRepository(pool)

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	if err := dashboardCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("dashboard invalidation listener", slog.Any("error", err))
	}
	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), alertsRepo, dashboardCache, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	actionRouter := actions.NewRouter(actions.Deps{
		Reports:     reportsRepo,
		Alerts:      alertsRepo,
		Locks:       lockManager,
		Idempotency: idempotencyStore,
		Audit:       auditLogger,
		Approvals:   approvalRecorder,
		Jobs:        jobsClient,
		Observer:    metrics,
		Views:       dashboardService,
		Logger:      logger,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		AuthHandler:         authHandler,
		CapabilitiesHandler: rbac.NewCapabilitiesHandler(),
		ScanHandler:         scan.NewHandler(logger, resolver, cfg.ScanPolicy(), actionRouter, rbacMiddleware),
		FittingsHandler:     fittings.NewHandler(logger, fittingStore, rbacMiddleware),
		ActionsHandler:      actions.NewHandler(logger, actionRouter, fittingStore, rbacMiddleware),
		ReportsHandler:      reports.NewHandler(logger, reportsRepo, rbacMiddleware),
		AlertsHandler:       alerts.NewHandler(logger, alertsRepo, rbacMiddleware),
		DashboardHandler:    dashboard.NewHandler(logger, dashboardService, rbacMiddleware),
		AuditHandler:        audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool)), rbacMiddleware),
		JobHandler:          jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
		Readiness:           readinessChecks(pool, redisClient, decoderClient),
	})

	go sweepScanSessions(ctx, resolver, cfg.ScanSessionIdle, logger)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}

func readinessChecks(pool *pgxpool.Pool, client *redis.Client, dec *decoder.Client) map[string]app.ReadinessCheck {
	return map[string]app.ReadinessCheck{
		"postgres": pool.Ping,
		"redis": func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		"decoder": dec.Ping,
	}
}

// sweepScanSessions drops resolver state for sessions idle longer than idle.
func sweepScanSessions(ctx context.Context, resolver *scan.Resolver, idle time.Duration, logger *slog.Logger) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := resolver.Sweep(now.Add(-idle)); n > 0 {
				logger.Debug("swept idle scan sessions", slog.Int("count", n))
			}
		}
	}
}
