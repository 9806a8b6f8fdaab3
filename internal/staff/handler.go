package staff

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gearbox-hq/gearbox/internal/platform/httpx"
	"github.com/gearbox-hq/gearbox/internal/rbac"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// Handler manages attendance endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: guard}
}

type checkInRequest struct {
	Notes *string `json:"notes"`
}

// MountRoutes registers attendance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResAttendance, rbac.ActView))
		r.Get("/", h.list)
		r.Get("/summary", h.summary)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResAttendance, rbac.ActCreate))
		r.Post("/check-in", h.checkIn)
		r.Post("/check-out", h.checkOut)
	})
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON")
			return
		}
	}
	caller := shared.CallerFromContext(r.Context())
	record, err := h.service.CheckIn(r.Context(), caller, req.Notes)
	if err != nil {
		h.respondError(w, "check in", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) checkOut(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	record, err := h.service.CheckOut(r.Context(), caller)
	if err != nil {
		h.respondError(w, "check out", err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	q := r.URL.Query()
	userID, _ := strconv.ParseInt(q.Get("user_id"), 10, 64)
	var from, to time.Time
	if v := q.Get("from"); v != "" {
		from, _ = time.Parse("2006-01-02", v)
	}
	if v := q.Get("to"); v != "" {
		to, _ = time.Parse("2006-01-02", v)
	}
	records, err := h.service.List(r.Context(), caller, userID, from, to)
	if err != nil {
		h.logger.Error("list attendance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attendance": records})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	q := r.URL.Query()
	userID, _ := strconv.ParseInt(q.Get("user_id"), 10, 64)
	year, _ := strconv.Atoi(q.Get("year"))
	month, _ := strconv.Atoi(q.Get("month"))
	summary, err := h.service.Summary(r.Context(), caller, userID, year, month)
	if err != nil {
		h.logger.Error("attendance summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch err {
	case ErrAlreadyCheckedIn, ErrNotCheckedIn:
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
