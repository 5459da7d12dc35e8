package scan

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/fittings"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/httpx"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// MaxImageBytes bounds uploaded scan images.
const MaxImageBytes = 8 << 20

// ActionLister computes the actions offered for an identified fitting.
type ActionLister interface {
	AvailableActions(ctx context.Context, p rbac.Principal, rec fittings.Record) ([]rbac.Action, error)
}

// Handler exposes the resolver over HTTP.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	policy   Policy
	actions  ActionLister
	rbac     rbac.Middleware
	now      func() time.Time
}

// NewHandler builds the scan handler.
func NewHandler(logger *slog.Logger, resolver *Resolver, policy Policy, actions ActionLister, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, resolver: resolver, policy: policy, actions: actions, rbac: rbacMW, now: time.Now}
}

// MountRoutes registers scan routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionScan))
		r.Post("/", h.submit)
		r.Get("/latest", h.latest)
	})
}

type scanRequest struct {
	Image     string `json:"image"`
	FittingID string `json:"fitting_id"`
}

type scanResponse struct {
	Kind       string           `json:"kind"`
	FittingID  string           `json:"fitting_id,omitempty"`
	Confidence *float64         `json:"confidence,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Advice     Advice           `json:"advice"`
	Fitting    *fittings.Record `json:"fitting,omitempty"`
	Actions    []rbac.Action    `json:"actions"`
	At         time.Time        `json:"at"`

	// ActionsUnavailable marks an empty Actions list that could not be
	// computed, as opposed to one with nothing permitted.
	ActionsUnavailable bool `json:"actions_unavailable,omitempty"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.parseAttempt(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.resolver.Submit(r.Context(), sessionKey(r), attempt)
	if err != nil {
		if !errors.Is(err, ErrResolutionFailed) && !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrConflict) {
			h.logger.Error("scan submit", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.present(r, res))
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resolver.Latest(sessionKey(r))
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, h.present(r, res))
}

func (h *Handler) present(r *http.Request, res Result) scanResponse {
	resp := scanResponse{
		Kind:    res.Resolution.Label(),
		Advice:  h.policy.Assess(res.Resolution),
		Actions: []rbac.Action{},
		At:      res.At,
	}
	switch v := res.Resolution.(type) {
	case Decoded:
		resp.FittingID = v.FittingID
	case Reconstructed:
		resp.FittingID = v.FittingID
		confidence := v.Confidence
		resp.Confidence = &confidence
	case Failed:
		resp.Reason = string(v.Reason)
		return resp
	}
	fitting := res.Fitting
	resp.Fitting = &fitting
	if resp.Advice == AdviceReject || h.actions == nil {
		return resp
	}
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		return resp
	}
	actions, err := h.actions.AvailableActions(r.Context(), p, res.Fitting)
	if err != nil {
		h.logger.Warn("list actions for scanned fitting", slog.String("fitting_id", resp.FittingID), slog.Any("error", err))
		resp.ActionsUnavailable = true
		return resp
	}
	resp.Actions = actions
	return resp
}

func (h *Handler) parseAttempt(w http.ResponseWriter, r *http.Request) (Attempt, error) {
	now := h.now()
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
			return Attempt{}, shared.NewValidationError("image", "malformed multipart body")
		}
		if id := r.FormValue("fitting_id"); strings.TrimSpace(id) != "" {
			return ManualAttempt(id, now), nil
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return Attempt{}, shared.NewValidationError("image", "required")
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
		if err != nil {
			return Attempt{}, shared.NewValidationError("image", "unreadable")
		}
		return imageAttempt(data, now)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes*2)
	var req scanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return Attempt{}, shared.NewValidationError("body", "malformed JSON")
	}
	hasImage := strings.TrimSpace(req.Image) != ""
	hasID := strings.TrimSpace(req.FittingID) != ""
	switch {
	case hasImage && hasID:
		return Attempt{}, shared.NewValidationError("body", "provide either image or fitting_id, not both")
	case hasID:
		return ManualAttempt(req.FittingID, now), nil
	case hasImage:
		data, err := decodeImagePayload(req.Image)
		if err != nil {
			return Attempt{}, shared.NewValidationError("image", "invalid base64")
		}
		return imageAttempt(data, now)
	default:
		return Attempt{}, shared.NewValidationError("body", "image or fitting_id required")
	}
}

func imageAttempt(data []byte, now time.Time) (Attempt, error) {
	if len(data) == 0 {
		return Attempt{}, shared.NewValidationError("image", "required")
	}
	if len(data) > MaxImageBytes {
		return Attempt{}, shared.NewValidationError("image", "exceeds "+strconv.Itoa(MaxImageBytes>>20)+" MiB")
	}
	if !strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
		return Attempt{}, shared.NewValidationError("image", "not an image")
	}
	return ImageAttempt(data, now), nil
}

// decodeImagePayload accepts plain base64 or a data URL.
func decodeImagePayload(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ','); i >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
	}
	return data, nil
}

func sessionKey(r *http.Request) string {
	if key := shared.SessionKeyFromContext(r.Context()); key != "" {
		return key
	}
	if p, ok := rbac.PrincipalFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(p.UserID, 10)
	}
	return ""
}
