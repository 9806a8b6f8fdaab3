package tasks

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gearbox-hq/gearbox/internal/platform/httpx"
	"github.com/gearbox-hq/gearbox/internal/rbac"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// Handler manages task endpoints.
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

type taskRequest struct {
	Title          string     `json:"title" validate:"required,max=200"`
	Description    *string    `json:"description,omitempty"`
	Status         Status     `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	HoursEstimated float64    `json:"hours_estimated" validate:"gte=0"`
	HoursSpent     float64    `json:"hours_spent" validate:"gte=0"`
	Price          float64    `json:"price" validate:"gte=0"`
	MechanicID     *int64     `json:"mechanic_id,omitempty"`
	VehicleID      *int64     `json:"vehicle_id,omitempty"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty"`
}

type assignMechanicRequest struct {
	MechanicID   int64      `json:"mechanic_id" validate:"required,gt=0"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// MountRoutes registers task routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResTasks, rbac.ActView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResTasks, rbac.ActCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResTasks, rbac.ActEdit))
		r.Put("/{id}", h.update)
		r.Post("/{id}/assign-mechanic", h.assignMechanic)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResTasks, rbac.ActDelete))
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	q := r.URL.Query()
	filter := ListFilter{
		Status:   Status(q.Get("status")),
		Unbilled: q.Get("unbilled") == "true",
	}
	filter.MechanicID, _ = strconv.ParseInt(q.Get("mechanic_id"), 10, 64)
	filter.VehicleID, _ = strconv.ParseInt(q.Get("vehicle_id"), 10, 64)
	result, err := h.service.List(r.Context(), caller, filter)
	if err != nil {
		h.logger.Error("list tasks", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tasks": result})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	caller := shared.CallerFromContext(r.Context())
	task, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		respondTaskError(w, h.logger, "get task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	task, err := h.service.Create(r.Context(), caller, taskFromRequest(req, 0))
	if err != nil {
		respondTaskError(w, h.logger, "create task", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, task)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req taskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Status == "" {
		req.Status = StatusPending
	}
	caller := shared.CallerFromContext(r.Context())
	task, err := h.service.Update(r.Context(), caller, taskFromRequest(req, id))
	if err != nil {
		respondTaskError(w, h.logger, "update task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

func (h *Handler) assignMechanic(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req assignMechanicRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	task, err := h.service.AssignMechanic(r.Context(), caller, id, req.MechanicID, req.ScheduledFor)
	if err != nil {
		respondTaskError(w, h.logger, "assign mechanic", err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	caller := shared.CallerFromContext(r.Context())
	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		respondTaskError(w, h.logger, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func taskFromRequest(req taskRequest, id int64) Task {
	return Task{
		ID:             id,
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		HoursEstimated: req.HoursEstimated,
		HoursSpent:     req.HoursSpent,
		Price:          req.Price,
		MechanicID:     req.MechanicID,
		VehicleID:      req.VehicleID,
		ScheduledFor:   req.ScheduledFor,
	}
}

func respondTaskError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch err {
	case ErrNotFound:
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case ErrInvalidStatus, ErrNotCompleted:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case ErrAlreadyBilled:
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
