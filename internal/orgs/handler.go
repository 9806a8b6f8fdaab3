package orgs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gearbox-hq/gearbox/internal/platform/httpx"
	"github.com/gearbox-hq/gearbox/internal/rbac"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// Handler manages organization and superadmin endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, rbac: guard}
}

type settingsRequest struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Currency string  `json:"currency" validate:"required,len=3,alpha"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	TaxRate  float64 `json:"default_tax_rate" validate:"gte=0,lte=100"`
}

// MountRoutes registers the tenant-facing organization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResOrganizations, rbac.ActView))
		r.Get("/", h.get)
		r.Get("/subscription", h.subscription)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResOrganizations, rbac.ActEdit))
		r.Put("/", h.updateSettings)
	})
}

// MountSuperadminRoutes registers the privileged console routes.
func (h *Handler) MountSuperadminRoutes(r chi.Router) {
	r.Use(h.rbac.RequireSuperadmin())
	r.Post("/rpc", h.rpc)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	org, err := h.service.Get(r.Context(), caller)
	if err != nil {
		h.respondError(w, "get organization", err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	org, err := h.service.UpdateSettings(r.Context(), caller, Organization{
		Name: req.Name, Currency: req.Currency, Phone: req.Phone, Address: req.Address, TaxRate: req.TaxRate,
	})
	if err != nil {
		h.respondError(w, "update organization", err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) subscription(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	sub, err := h.service.Subscription(r.Context(), caller)
	if err != nil {
		h.respondError(w, "get subscription", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sub)
}

func (h *Handler) rpc(w http.ResponseWriter, r *http.Request) {
	var req RPCRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if req.Action == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "action is required")
		return
	}
	caller := shared.CallerFromContext(r.Context())
	result, err := h.service.Dispatch(r.Context(), caller, req)
	if err != nil {
		h.respondError(w, "superadmin rpc "+req.Action, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"result": result})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnknownAction):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrHasMembers):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
