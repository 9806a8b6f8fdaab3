package app

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gearbox-hq/gearbox/internal/auth"
	"github.com/gearbox-hq/gearbox/internal/customers"
	"github.com/gearbox-hq/gearbox/internal/expenses"
	"github.com/gearbox-hq/gearbox/internal/invoices"
	"github.com/gearbox-hq/gearbox/internal/loader"
	"github.com/gearbox-hq/gearbox/internal/observability"
	"github.com/gearbox-hq/gearbox/internal/orgs"
	"github.com/gearbox-hq/gearbox/internal/parts"
	"github.com/gearbox-hq/gearbox/internal/rbac"
	"github.com/gearbox-hq/gearbox/internal/reports"
	"github.com/gearbox-hq/gearbox/internal/shared"
	"github.com/gearbox-hq/gearbox/internal/staff"
	"github.com/gearbox-hq/gearbox/internal/tasks"
)

// feedTables lists the tables clients may subscribe to for live updates.
var feedTables = map[string]struct{}{
	"customers": {},
	"vehicles":  {},
	"parts":     {},
	"tasks":     {},
	"invoices":  {},
	"expenses":  {},
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Resolver       CallerResolver

	AuthHandler        *auth.Handler
	CustomerHandler    *customers.Handler
	PartHandler        *parts.Handler
	TaskHandler        *tasks.Handler
	InvoiceHandler     *invoices.Handler
	ExpenseHandler     *expenses.Handler
	StaffHandler       *staff.Handler
	OrgHandler         *orgs.Handler
	ReportHandler      *reports.Handler
	PermissionsHandler *rbac.PermissionsHandler

	Feed    *loader.Feed
	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Gearbox defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Resolver:       params.Resolver,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(requireAuthenticated)

			r.Route("/me", params.AuthHandler.MountAccountRoutes)
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
			r.Route("/users", params.AuthHandler.MountUserRoutes)
			r.Route("/customers", params.CustomerHandler.MountRoutes)
			r.Route("/vehicles", params.CustomerHandler.MountVehicleRoutes)
			r.Route("/parts", params.PartHandler.MountRoutes)
			r.Route("/tasks", params.TaskHandler.MountRoutes)
			r.Route("/invoices", params.InvoiceHandler.MountRoutes)
			r.Route("/expenses", params.ExpenseHandler.MountRoutes)
			r.Route("/attendance", params.StaffHandler.MountRoutes)
			r.Route("/org", params.OrgHandler.MountRoutes)
			r.Route("/superadmin", params.OrgHandler.MountSuperadminRoutes)
			r.Route("/reports", params.ReportHandler.MountRoutes)

			if params.Feed != nil {
				r.Get("/feed/{table}", feedHandler(params.Logger, params.Feed))
			}
		})
	})

	return r
}

// requireAuthenticated rejects requests without a resolved caller. Route
// groups behind it can assume CallerFromContext is non-nil.
func requireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.CallerFromContext(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"title":"Unauthorized","detail":"sign in required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// feedHandler streams table change events over SSE. Events for other
// organizations are dropped before they reach the client.
func feedHandler(logger *slog.Logger, feed *loader.Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")
		if _, ok := feedTables[table]; !ok {
			http.Error(w, "unknown feed", http.StatusNotFound)
			return
		}
		caller := shared.CallerFromContext(r.Context())
		scope := caller.OrgScope()
		if scope == shared.ScopeNone {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		events, err := feed.Subscribe(r.Context(), table)
		if err != nil {
			logger.Error("feed subscribe", slog.String("table", table), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for event := range events {
			if scope != shared.ScopeAll && event.OrganizationID != scope {
				continue
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
