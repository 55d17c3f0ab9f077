package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

// middlewareOperator lets public routes through and requires every other
// route to carry a bearer token whose role the enforcer allows for the
// matched route and method.
func middlewareOperator(verifier jwt.JWT, enforcer Enforcer, public map[string]map[string]struct{}) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := matchedRoutePath(r)

			if _, skip := public[r.Method][path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			if verifier == nil || enforcer == nil {
				writeJSON(w, envelope(false, "Operator access is not configured", nil), http.StatusForbidden)
				return
			}

			p := strings.Fields(r.Header.Get("Authorization"))
			if len(p) != 2 || !strings.EqualFold(p[0], "Bearer") {
				writeJSON(w, envelope(false, "Authentication required", nil), http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(p[1])
			if err != nil {
				writeJSON(w, envelope(false, "Invalid or expired token", nil), http.StatusUnauthorized)
				return
			}

			allowed, err := enforcer.Enforce(claims.Role, path, r.Method)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to enforce operator policy", "role", claims.Role, "error", err)
				writeJSON(w, envelope(false, "Internal server error", nil), http.StatusInternalServerError)
				return
			}
			if !allowed {
				writeJSON(w, envelope(false, "Forbidden", nil), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(jwt.SetAuth(r.Context(), claims)))
		})
	}
}
