package reports

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/httpx"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// Lister is the read side used by the listing endpoint.
type Lister interface {
	List(ctx context.Context, filter ListFilter) ([]FaultReport, int, error)
	Get(ctx context.Context, id string) (FaultReport, error)
}

// Handler serves report listings. Submission goes through the action router.
type Handler struct {
	logger *slog.Logger
	repo   Lister
	rbac   rbac.Middleware
}

// NewHandler builds the report handler.
func NewHandler(logger *slog.Logger, repo Lister, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, repo: repo, rbac: rbacMW}
}

// MountRoutes registers read-only report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionViewReports))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
}

type listResponse struct {
	Reports    []FaultReport     `json:"reports"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := shared.PageFromQuery(q)
	filter := ListFilter{FittingID: strings.TrimSpace(q.Get("fitting_id"))}
	if raw := q.Get("severity"); raw != "" && raw != "all" {
		sev, err := ParseSeverity(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Severity = sev
	}
	pagination := shared.NewPagination(page, perPage, 0)
	filter.Limit = pagination.PerPage
	filter.Offset = pagination.Offset()

	items, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list reports", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []FaultReport{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Reports: items, Pagination: shared.NewPagination(page, perPage, total)})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	rep, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}
