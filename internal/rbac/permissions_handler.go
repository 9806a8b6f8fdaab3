package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gearbox-hq/gearbox/internal/platform/httpx"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// PermissionsHandler exposes the caller's effective capabilities.
type PermissionsHandler struct{}

// NewPermissionsHandler constructs the handler.
func NewPermissionsHandler() *PermissionsHandler {
	return &PermissionsHandler{}
}

// MountRoutes attaches permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/me", h.mine)
}

func (h *PermissionsHandler) mine(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	if caller == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":         caller.Role,
		"capabilities": Capabilities(caller.Role),
	})
}
