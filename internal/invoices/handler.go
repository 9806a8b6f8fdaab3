package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gearbox-hq/gearbox/internal/parts"
	"github.com/gearbox-hq/gearbox/internal/platform/httpx"
	"github.com/gearbox-hq/gearbox/internal/rbac"
	"github.com/gearbox-hq/gearbox/internal/shared"
	"github.com/gearbox-hq/gearbox/internal/tasks"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
	idem     *shared.IdempotencyStore
}

// NewHandler builds Handler instance. idem may be nil, which disables
// Idempotency-Key handling on payment creation.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, guard rbac.Middleware, idem *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, rbac: guard, idem: idem}
}

type assignPartRequest struct {
	PartID   int64   `json:"part_id" validate:"required,gt=0"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
}

type assignTaskRequest struct {
	TaskID int64 `json:"task_id" validate:"required,gt=0"`
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResInvoices, rbac.ActView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResInvoices, rbac.ActCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResInvoices, rbac.ActEdit))
		r.Put("/{id}", h.update)
		r.Post("/{id}/cancel", h.cancel)
		r.Post("/{id}/parts", h.assignPart)
		r.Post("/{id}/tasks", h.assignTask)
		r.Delete("/{id}/items/{itemID}", h.removeItem)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResPayments, rbac.ActCreate))
		r.Post("/{id}/payments", h.addPayment)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResPayments, rbac.ActDelete))
		r.Delete("/{id}/payments/{paymentID}", h.removePayment)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	filter := parseListFilter(r)
	invoices, total, err := h.service.List(r.Context(), caller, filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	caller := shared.CallerFromContext(r.Context())
	inv, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		respondInvoiceError(w, h.logger, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	inv, err := h.service.Create(r.Context(), caller, req)
	if err != nil {
		respondInvoiceError(w, h.logger, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	inv, err := h.service.Update(r.Context(), caller, id, req)
	if err != nil {
		respondInvoiceError(w, h.logger, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	caller := shared.CallerFromContext(r.Context())
	inv, err := h.service.Cancel(r.Context(), caller, id)
	if err != nil {
		respondInvoiceError(w, h.logger, "cancel invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PaymentInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "payments"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "payment with this idempotency key was already recorded")
				return
			}
			h.logger.Error("idempotency check", "error", err)
			httpx.RespondError(w, err)
			return
		}
	}
	inv, err := h.service.AddPayment(r.Context(), caller, id, req)
	if err != nil {
		if idemKey != "" && h.idem != nil {
			if delErr := h.idem.Delete(r.Context(), idemKey); delErr != nil {
				h.logger.Error("idempotency rollback", "error", delErr)
			}
		}
		respondInvoiceError(w, h.logger, "add payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) removePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	paymentID, ok := pathID(w, r, "paymentID")
	if !ok {
		return
	}
	caller := shared.CallerFromContext(r.Context())
	inv, err := h.service.DeletePayment(r.Context(), caller, id, paymentID)
	if err != nil {
		respondInvoiceError(w, h.logger, "remove payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) assignPart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req assignPartRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	inv, err := h.service.AssignPart(r.Context(), caller, id, req.PartID, req.Quantity)
	if err != nil {
		respondInvoiceError(w, h.logger, "assign part", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) assignTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req assignTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller := shared.CallerFromContext(r.Context())
	inv, err := h.service.AssignTask(r.Context(), caller, id, req.TaskID)
	if err != nil {
		respondInvoiceError(w, h.logger, "assign task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	caller := shared.CallerFromContext(r.Context())
	inv, err := h.service.RemoveItem(r.Context(), caller, id, itemID)
	if err != nil {
		respondInvoiceError(w, h.logger, "remove item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}

func parseListFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	var filter ListFilter
	filter.CustomerID, _ = strconv.ParseInt(q.Get("customer_id"), 10, 64)
	filter.VehicleID, _ = strconv.ParseInt(q.Get("vehicle_id"), 10, 64)
	filter.Status = Status(q.Get("status"))
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateFrom = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateTo = &t
		}
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	p := shared.NewPagination(page, perPage, 0)
	filter.Limit = p.PerPage
	filter.Offset = p.Offset()
	return filter
}

func respondInvoiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, parts.ErrNotFound), errors.Is(err, tasks.ErrNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case errors.Is(err, parts.ErrInvalidQuantity), errors.Is(err, parts.ErrInvalidPrice):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case errors.Is(err, tasks.ErrNotCompleted), errors.Is(err, tasks.ErrAlreadyBilled):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	default:
		logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
