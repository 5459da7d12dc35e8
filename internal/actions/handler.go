package actions

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/fittings"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/httpx"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// IdempotencyHeader carries the client-chosen key that deduplicates report submissions.
const IdempotencyHeader = "Idempotency-Key"

// FittingStore resolves the fitting whose actions are listed.
type FittingStore interface {
	Lookup(ctx context.Context, id string) (fittings.Record, error)
}

// Handler exposes the action router over HTTP.
type Handler struct {
	logger *slog.Logger
	router *Router
	store  FittingStore
	rbac   rbac.Middleware
}

// NewHandler builds the action handler.
func NewHandler(logger *slog.Logger, router *Router, store FittingStore, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, router: router, store: store, rbac: rbacMW}
}

// The mount helpers attach to the fittings, reports and alerts subrouters.
// The router re-checks each capability on dispatch, the middleware only
// short-circuits obvious denials.

// MountFittingRoutes registers GET /{id}/actions.
func (h *Handler) MountFittingRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.ActionScan)).Get("/{id}/actions", h.available)
}

// MountReportRoutes registers POST / for fault submission.
func (h *Handler) MountReportRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.ActionReportFault)).Post("/", h.reportFault)
}

// MountAlertRoutes registers POST /{id}/decision.
func (h *Handler) MountAlertRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.ActionActOnAlert)).Post("/{id}/decision", h.decide)
}

type availableResponse struct {
	FittingID string        `json:"fitting_id"`
	Actions   []rbac.Action `json:"actions"`
}

func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	rec, err := h.store.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.router.AvailableActions(r.Context(), p, rec)
	if err != nil {
		h.logger.Error("available actions", slog.String("fitting_id", rec.FittingID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, availableResponse{FittingID: rec.FittingID, Actions: list})
}

type reportFaultRequest struct {
	FittingID   string `json:"fitting_id"`
	FaultType   string `json:"fault_type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

func (h *Handler) reportFault(w http.ResponseWriter, r *http.Request) {
	var req reportFaultRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", "malformed JSON"))
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	out, err := h.router.Dispatch(r.Context(), p, ReportFault{
		FittingID:      req.FittingID,
		FaultType:      req.FaultType,
		Severity:       reports.Severity(strings.ToLower(strings.TrimSpace(req.Severity))),
		Description:    req.Description,
		Location:       req.Location,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.NewValidationError("alert_id", "must be a positive id"))
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", "malformed JSON"))
		return
	}
	decision, err := rbac.ParseDecision(req.Decision)
	if err != nil {
		httpx.RespondError(w, shared.NewValidationError("decision", "must be approve or reject"))
		return
	}
	p, _ := rbac.PrincipalFromContext(r.Context())
	out, err := h.router.Dispatch(r.Context(), p, AlertDecision{AlertID: id, Decision: decision, Note: req.Note})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
