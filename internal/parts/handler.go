package parts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gearbox-hq/gearbox/internal/platform/httpx"
	"github.com/gearbox-hq/gearbox/internal/rbac"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// Handler manages part endpoints.
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

type partRequest struct {
	Name     string  `json:"name" validate:"required,max=200"`
	SKU      *string `json:"sku,omitempty" validate:"omitempty,max=64"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Price    float64 `json:"price" validate:"gte=0"`
	MinStock float64 `json:"min_stock" validate:"gte=0"`
}

type adjustRequest struct {
	Delta float64 `json:"delta" validate:"required"`
}

// MountRoutes registers part routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResParts, rbac.ActView))
		r.Get("/", h.list)
		r.Get("/low-stock", h.lowStock)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResParts, rbac.ActCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResParts, rbac.ActEdit))
		r.Put("/{id}", h.update)
		r.Post("/{id}/adjust", h.adjust)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResParts, rbac.ActDelete))
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	result, err := h.service.List(r.Context(), caller, r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("list parts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"parts": result})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	result, err := h.service.LowStock(r.Context(), caller)
	if err != nil {
		h.logger.Error("list low stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"parts": result})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	caller := shared.CallerFromContext(r.Context())
	part, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		respondPartError(w, h.logger, "get part", err)
		return
	}
	httpx.JSON(w, http.StatusOK, part)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req partRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	part, err := h.service.Create(r.Context(), caller, Part{
		Name:     req.Name,
		SKU:      req.SKU,
		Quantity: req.Quantity,
		Price:    req.Price,
		MinStock: req.MinStock,
	})
	if err != nil {
		respondPartError(w, h.logger, "create part", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, part)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req partRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	part, err := h.service.Update(r.Context(), caller, Part{
		ID:       id,
		Name:     req.Name,
		SKU:      req.SKU,
		Price:    req.Price,
		MinStock: req.MinStock,
	})
	if err != nil {
		respondPartError(w, h.logger, "update part", err)
		return
	}
	httpx.JSON(w, http.StatusOK, part)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	caller := shared.CallerFromContext(r.Context())
	part, err := h.service.Adjust(r.Context(), caller, id, req.Delta)
	if err != nil {
		respondPartError(w, h.logger, "adjust part", err)
		return
	}
	httpx.JSON(w, http.StatusOK, part)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	caller := shared.CallerFromContext(r.Context())
	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		respondPartError(w, h.logger, "delete part", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondPartError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch err {
	case ErrNotFound:
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case ErrInvalidQuantity, ErrInvalidPrice:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
