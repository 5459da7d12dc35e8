package fittings

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/httpx"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
)

// Handler serves fitting details.
type Handler struct {
	logger *slog.Logger
	store  Store
	rbac   rbac.Middleware
	now    func() time.Time
}

// NewHandler builds the fitting detail handler.
func NewHandler(logger *slog.Logger, store Store, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, rbac: rbacMW, now: time.Now}
}

// MountRoutes registers fitting routes. Viewing details is part of the scan
// capability: every identified fitting can be inspected by whoever scanned it.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionScan))
		r.Get("/{id}", h.show)
	})
}

type detailResponse struct {
	Fitting  Record      `json:"fitting"`
	Warranty Warranty    `json:"warranty"`
	Last     *Inspection `json:"last_inspection,omitempty"`
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Debug("fitting lookup", slog.String("fitting_id", chi.URLParam(r, "id")), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := detailResponse{Fitting: rec, Warranty: rec.WarrantyAt(h.now())}
	if last, ok := rec.LastInspection(); ok {
		resp.Last = &last
	}
	httpx.JSON(w, http.StatusOK, resp)
}
