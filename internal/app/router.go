package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/actions"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/alerts"
	audithttp "github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/audit/http"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/auth"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/dashboard"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/fittings"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/observability"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/httpx"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/scan"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/jobs"
)

// ReadinessCheck reports whether a dependency is ready to serve traffic.
type ReadinessCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler         *auth.Handler
	CapabilitiesHandler *rbac.CapabilitiesHandler
	ScanHandler         *scan.Handler
	FittingsHandler     *fittings.Handler
	ActionsHandler      *actions.Handler
	ReportsHandler      *reports.Handler
	AlertsHandler       *alerts.Handler
	DashboardHandler    *dashboard.Handler
	AuditHandler        *audithttp.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics

	// Readiness checks run on /readyz keyed by dependency name.
	Readiness map[string]ReadinessCheck
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(params.Logger, params.Readiness))

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf", func(w http.ResponseWriter, r *http.Request) {
			token, err := params.CSRFManager.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
			if err != nil {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token, "header": CSRFHeader})
		})

		r.Route("/auth", params.AuthHandler.MountRoutes)
		if params.CapabilitiesHandler != nil {
			r.Route("/capabilities", params.CapabilitiesHandler.MountRoutes)
		}
		r.Route("/scan", params.ScanHandler.MountRoutes)
		r.Route("/fittings", func(r chi.Router) {
			params.FittingsHandler.MountRoutes(r)
			params.ActionsHandler.MountFittingRoutes(r)
		})
		r.Route("/reports", func(r chi.Router) {
			params.ReportsHandler.MountRoutes(r)
			params.ActionsHandler.MountReportRoutes(r)
		})
		r.Route("/alerts", func(r chi.Router) {
			params.AlertsHandler.MountRoutes(r)
			params.ActionsHandler.MountAlertRoutes(r)
		})
		r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})

	return r
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func readinessHandler(logger *slog.Logger, checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := readinessResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				if logger != nil {
					logger.Warn("readiness check failed", slog.String("dependency", name), slog.Any("error", err))
				}
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httpx.JSON(w, status, resp)
	}
}
