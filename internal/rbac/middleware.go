package rbac

import (
	"net/http"

	"github.com/gearbox-hq/gearbox/internal/platform/httpx"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// Middleware builds route guards from the capability table.
type Middleware struct{}

// NewMiddleware constructs the guard factory.
func NewMiddleware() Middleware {
	return Middleware{}
}

// Require blocks the request unless the caller holds the capability.
func (Middleware) Require(resource Resource, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := shared.CallerFromContext(r.Context())
			if caller == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
				return
			}
			if !Can(caller.Role, resource, action) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing capability")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperadmin blocks everyone except superadmins.
func (Middleware) RequireSuperadmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := shared.CallerFromContext(r.Context())
			if caller == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
				return
			}
			if caller.Role != shared.RoleSuperadmin {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "superadmin only")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
