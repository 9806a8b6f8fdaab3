package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gearbox-hq/gearbox/internal/app"
	"github.com/gearbox-hq/gearbox/internal/auth"
	"github.com/gearbox-hq/gearbox/internal/customers"
	"github.com/gearbox-hq/gearbox/internal/expenses"
	"github.com/gearbox-hq/gearbox/internal/invoices"
	"github.com/gearbox-hq/gearbox/internal/loader"
	"github.com/gearbox-hq/gearbox/internal/observability"
	"github.com/gearbox-hq/gearbox/internal/orgs"
	"github.com/gearbox-hq/gearbox/internal/parts"
	"github.com/gearbox-hq/gearbox/internal/platform/cache"
	"github.com/gearbox-hq/gearbox/internal/platform/db"
	"github.com/gearbox-hq/gearbox/internal/rbac"
	"github.com/gearbox-hq/gearbox/internal/reports"
	"github.com/gearbox-hq/gearbox/internal/shared"
	"github.com/gearbox-hq/gearbox/internal/staff"
	"github.com/gearbox-hq/gearbox/internal/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "gearbox_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)
	validate := validator.New()
	guard := rbac.NewMiddleware()

	feed := loader.NewFeed(redisClient, logger)
	loadOpts := loader.Options{
		Retries: cfg.LoadRetries,
		Backoff: cfg.LoadRetryBackoff,
		Timeout: cfg.LoadTimeout,
	}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, auditLogger)
	authHandler := auth.NewHandler(logger, authService, sessionManager, validate, guard)

	customerRepo := customers.NewRepository(pool)
	customerService := customers.NewService(customerRepo, feed,
		loader.New[customers.Customer](loadOpts, logger, metrics),
		loader.New[customers.Vehicle](loadOpts, logger, metrics))
	customerHandler := customers.NewHandler(logger, customerService, validate, guard)

	partRepo := parts.NewRepository(pool)
	partService := parts.NewService(partRepo, feed,
		loader.New[parts.Part](loadOpts, logger, metrics))
	partHandler := parts.NewHandler(logger, partService, validate, guard)

	taskRepo := tasks.NewRepository(pool)
	taskService := tasks.NewService(taskRepo, feed,
		loader.New[tasks.Task](loadOpts, logger, metrics))
	taskHandler := tasks.NewHandler(logger, taskService, validate, guard)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo, feed, auditLogger,
		loader.New[invoices.ListPage](loadOpts, logger, metrics))
	invoiceHandler := invoices.NewHandler(logger, invoiceService, validate, guard, shared.NewIdempotencyStore(pool))

	expenseRepo := expenses.NewRepository(pool)
	expenseService := expenses.NewService(expenseRepo, feed,
		loader.New[expenses.Expense](loadOpts, logger, metrics))
	expenseHandler := expenses.NewHandler(logger, expenseService, validate, guard)

	staffRepo := staff.NewRepository(pool)
	staffService := staff.NewService(staffRepo)
	staffHandler := staff.NewHandler(logger, staffService, guard)

	orgRepo := orgs.NewRepository(pool)
	orgService := orgs.NewService(orgRepo, authService, auditLogger)
	orgHandler := orgs.NewHandler(logger, orgService, validate, guard)

	reportRepo := reports.NewRepository(pool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := reports.NewService(reportRepo, reportCache)
	reportHandler := reports.NewHandler(logger, reportService, guard)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		Resolver:           authService,
		AuthHandler:        authHandler,
		CustomerHandler:    customerHandler,
		PartHandler:        partHandler,
		TaskHandler:        taskHandler,
		InvoiceHandler:     invoiceHandler,
		ExpenseHandler:     expenseHandler,
		StaffHandler:       staffHandler,
		OrgHandler:         orgHandler,
		ReportHandler:      reportHandler,
		PermissionsHandler: rbac.NewPermissionsHandler(),
		Feed:               feed,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
