package alerts

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/httpx"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// Handler serves alert listings. Decisions go through the action router.
type Handler struct {
	logger *slog.Logger
	sink   Sink
	rbac   rbac.Middleware
}

// NewHandler builds the alert handler.
func NewHandler(logger *slog.Logger, sink Sink, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, sink: sink, rbac: rbacMW}
}

// MountRoutes registers alert routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionViewAlerts))
		r.Get("/", h.list)
	})
}

type listResponse struct {
	Alerts []Alert        `json:"alerts"`
	Counts map[string]int `json:"counts"`
	Filter string         `json:"filter"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filter Filter

	label := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("severity")))
	if label == "" {
		label = "all"
	}
	if label != "all" {
		sev, err := reports.ParseSeverity(label)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Severity = sev
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("assigned")); raw != "" {
		role, err := rbac.ParseRole(raw)
		if err != nil {
			httpx.RespondError(w, shared.NewValidationError("assigned", "unknown role"))
			return
		}
		filter.AssignedTo = role
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		switch s := Status(strings.ToLower(raw)); s {
		case StatusPending, StatusApproved, StatusRejected:
			filter.Status = s
		default:
			httpx.RespondError(w, shared.NewValidationError("status", "must be pending, approved or rejected"))
			return
		}
	}

	items, err := h.sink.ListAlerts(r.Context(), filter)
	if err != nil {
		h.logger.Error("list alerts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Alert{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Alerts: items, Counts: CountBySeverity(items), Filter: label})
}

// CountBySeverity tallies alerts per severity plus an "all" total.
func CountBySeverity(items []Alert) map[string]int {
	counts := map[string]int{
		"all":                            len(items),
		string(reports.SeverityCritical): 0,
		string(reports.SeverityModerate): 0,
		string(reports.SeverityMinor):    0,
	}
	for _, a := range items {
		counts[string(a.Severity)]++
	}
	return counts
}
