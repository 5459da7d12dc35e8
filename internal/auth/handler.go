package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/httpx"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	sessions   *shared.SessionManager
	audit      shared.AuditRecorder
	forgetters []SessionForgetter
}

// SessionForgetter drops per-session state kept outside the session store,
// such as an in-flight scan attempt.
type SessionForgetter interface {
	Forget(sessionKey string)
}

// NewHandler constructs a Handler instance. audit may be nil.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, audit shared.AuditRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, sessions: sessions, audit: audit}
}

// ForgetOnLogout registers state holders cleared when a session logs out.
func (h *Handler) ForgetOnLogout(fs ...SessionForgetter) *Handler {
	h.forgetters = append(h.forgetters, fs...)
	return h
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Principal rbac.Principal `json:"principal"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.RespondError(w, shared.NewValidationError("body", "malformed JSON"))
		return
	}

	issued, principal, err := h.service.Authenticate(r.Context(), creds)
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("login", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Adopt(issued)
	}
	h.record(r, principal, "auth.login")

	httpx.JSON(w, http.StatusOK, loginResponse{
		Token:     issued.ID,
		ExpiresAt: time.Now().Add(h.sessions.TTL()).UTC(),
		Principal: principal,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if p, ok := rbac.PrincipalFromContext(r.Context()); ok {
			h.record(r, p, "auth.logout")
		}
		if err := h.service.Logout(r.Context(), sess.ID); err != nil {
			h.logger.Warn("revoke session", slog.Any("error", err))
		}
		for _, f := range h.forgetters {
			f.Forget(sess.ID)
		}
		h.sessions.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) record(r *http.Request, p rbac.Principal, action string) {
	if h.audit == nil {
		return
	}
	err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:   p.UserID,
		ActorName: p.Username,
		ActorRole: string(p.Role),
		Action:    action,
		Entity:    "user",
		EntityID:  p.Username,
		At:        time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warn("audit auth event", slog.String("action", action), slog.Any("error", err))
	}
}

func isClientError(err error) bool {
	return errors.Is(err, shared.ErrInvalidCredentials) || errors.Is(err, shared.ErrValidation)
}
