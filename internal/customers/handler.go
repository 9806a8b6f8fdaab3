package customers

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

// Handler manages customer and vehicle endpoints.
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

type customerRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Notes   *string `json:"notes"`
}

type vehicleRequest struct {
	CustomerID   int64   `json:"customer_id" validate:"required,gt=0"`
	Make         string  `json:"make" validate:"required,max=100"`
	Model        string  `json:"model" validate:"required,max=100"`
	Year         *int    `json:"year" validate:"omitempty,gte=1900,lte=2100"`
	LicensePlate *string `json:"license_plate" validate:"omitempty,max=20"`
	VIN          *string `json:"vin" validate:"omitempty,max=17"`
	Notes        *string `json:"notes"`
}

// MountRoutes registers customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResCustomers, rbac.ActView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResCustomers, rbac.ActCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResCustomers, rbac.ActEdit))
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResCustomers, rbac.ActDelete))
		r.Delete("/{id}", h.delete)
	})
}

// MountVehicleRoutes registers vehicle routes.
func (h *Handler) MountVehicleRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResVehicles, rbac.ActView))
		r.Get("/", h.listVehicles)
		r.Get("/{id}", h.getVehicle)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResVehicles, rbac.ActCreate))
		r.Post("/", h.createVehicle)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResVehicles, rbac.ActEdit))
		r.Put("/{id}", h.updateVehicle)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResVehicles, rbac.ActDelete))
		r.Delete("/{id}", h.deleteVehicle)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	result, err := h.service.List(r.Context(), caller, r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("list customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": result})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	caller := shared.CallerFromContext(r.Context())
	c, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	c, err := h.service.Create(r.Context(), caller, Customer{
		Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address, Notes: req.Notes,
	})
	if err != nil {
		h.respondError(w, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req customerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	c, err := h.service.Update(r.Context(), caller, Customer{
		ID: id, Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address, Notes: req.Notes,
	})
	if err != nil {
		h.respondError(w, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	caller := shared.CallerFromContext(r.Context())
	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		h.respondError(w, "delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listVehicles(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	customerID, _ := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	result, err := h.service.ListVehicles(r.Context(), caller, customerID)
	if err != nil {
		h.logger.Error("list vehicles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vehicles": result})
}

func (h *Handler) getVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	caller := shared.CallerFromContext(r.Context())
	v, err := h.service.GetVehicle(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, "get vehicle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) createVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	v, err := h.service.CreateVehicle(r.Context(), caller, Vehicle{
		CustomerID: req.CustomerID, Make: req.Make, Model: req.Model, Year: req.Year,
		LicensePlate: req.LicensePlate, VIN: req.VIN, Notes: req.Notes,
	})
	if err != nil {
		h.respondError(w, "create vehicle", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) updateVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req vehicleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	v, err := h.service.UpdateVehicle(r.Context(), caller, Vehicle{
		ID: id, Make: req.Make, Model: req.Model, Year: req.Year,
		LicensePlate: req.LicensePlate, VIN: req.VIN, Notes: req.Notes,
	})
	if err != nil {
		h.respondError(w, "update vehicle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) deleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	caller := shared.CallerFromContext(r.Context())
	if err := h.service.DeleteVehicle(r.Context(), caller, id); err != nil {
		h.respondError(w, "delete vehicle", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch err {
	case ErrNotFound:
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case ErrHasVehicles:
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
