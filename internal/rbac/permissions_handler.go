package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/httpx"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// CapabilitiesHandler exposes the capability table to clients so they can
// shape navigation. The server still enforces every check itself.
type CapabilitiesHandler struct{}

// NewCapabilitiesHandler builds CapabilitiesHandler instance.
func NewCapabilitiesHandler() *CapabilitiesHandler {
	return &CapabilitiesHandler{}
}

// MountRoutes registers capability routes.
func (h *CapabilitiesHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.mine)
	r.Get("/matrix", h.matrix)
}

type capabilitiesResponse struct {
	Role    Role     `json:"role"`
	Actions []Action `json:"actions"`
}

func (h *CapabilitiesHandler) mine(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, capabilitiesResponse{Role: p.Role, Actions: Permitted(p.Role)})
}

func (h *CapabilitiesHandler) matrix(w http.ResponseWriter, _ *http.Request) {
	out := make([]capabilitiesResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, capabilitiesResponse{Role: role, Actions: Permitted(role)})
	}
	httpx.JSON(w, http.StatusOK, out)
}
