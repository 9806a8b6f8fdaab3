package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gearbox-hq/gearbox/internal/platform/httpx"
	"github.com/gearbox-hq/gearbox/internal/rbac"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

// Handler exposes reporting endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: guard}
}

// MountRoutes registers report routes, all read-only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResReports, rbac.ActView))
		r.Get("/summary", h.summary)
		r.Get("/monthly", h.monthly)
		r.Get("/summary.csv", h.summaryCSV)
		r.Get("/monthly.csv", h.monthlyCSV)
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	summary, err := h.service.Summary(r.Context(), caller, parseRange(r))
	if err != nil {
		h.logger.Error("report summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	points, err := h.service.Monthly(r.Context(), caller, parseRange(r))
	if err != nil {
		h.logger.Error("report monthly", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"points": points})
}

func (h *Handler) summaryCSV(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	summary, err := h.service.Summary(r.Context(), caller, parseRange(r))
	if err != nil {
		h.logger.Error("report summary csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	writeCSVHeaders(w, "summary.csv")
	if err := WriteSummaryCSV(w, summary); err != nil {
		h.logger.Error("write summary csv", slog.Any("error", err))
	}
}

func (h *Handler) monthlyCSV(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	points, err := h.service.Monthly(r.Context(), caller, parseRange(r))
	if err != nil {
		h.logger.Error("report monthly csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	writeCSVHeaders(w, "monthly.csv")
	if err := WriteMonthlyCSV(w, points); err != nil {
		h.logger.Error("write monthly csv", slog.Any("error", err))
	}
}

func writeCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

func parseRange(r *http.Request) Range {
	var rng Range
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			rng.From = t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			rng.To = t
		}
	}
	return rng
}
