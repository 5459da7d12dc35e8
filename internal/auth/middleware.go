package auth

import (
	"log/slog"
	"net/http"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// LoadPrincipal places the session's principal, if any, into the request
// context. Requests without one pass through anonymously; route-level gates
// decide whether that is acceptable.
func LoadPrincipal(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || !sess.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			p, err := PrincipalFromSession(sess)
			if err != nil {
				if logger != nil {
					logger.Warn("discarding session with invalid identity", slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(rbac.ContextWithPrincipal(r.Context(), p)))
		})
	}
}
