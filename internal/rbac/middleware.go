package rbac

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/httpx"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// Authorize returns nil when the principal may perform action, otherwise an
// error wrapping shared.ErrAuthorizationDenied.
func Authorize(p Principal, action Action) error {
	if IsPermitted(p.Role, action) {
		return nil
	}
	return fmt.Errorf("%w: role %q may not %s", shared.ErrAuthorizationDenied, p.Role, action)
}

// Middleware wires capability checks for HTTP handlers. It expects the
// authentication middleware to have placed a Principal in the request context.
type Middleware struct {
	Logger *slog.Logger
}

// Require rejects requests without a principal (401) or whose role lacks the
// capability (403).
func (m Middleware) Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if err := Authorize(p, action); err != nil {
				if m.Logger != nil {
					m.Logger.Warn("capability denied",
						slog.String("user", p.Username),
						slog.String("role", string(p.Role)),
						slog.String("action", string(action)),
						slog.String("path", r.URL.Path),
					)
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects requests without a principal.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
