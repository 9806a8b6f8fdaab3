package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gearbox-hq/gearbox/internal/app"
	"github.com/gearbox-hq/gearbox/internal/invoices"
	"github.com/gearbox-hq/gearbox/internal/jobs"
	"github.com/gearbox-hq/gearbox/internal/loader"
	"github.com/gearbox-hq/gearbox/internal/orgs"
	"github.com/gearbox-hq/gearbox/internal/platform/cache"
	"github.com/gearbox-hq/gearbox/internal/platform/db"
	"github.com/gearbox-hq/gearbox/internal/shared"
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

	metrics := jobs.NewMetrics(nil)
	auditLogger := shared.NewAuditLogger(pool)
	feed := loader.NewFeed(redisClient, logger)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo, feed, auditLogger, nil)

	orgRepo := orgs.NewRepository(pool)
	orgService := orgs.NewService(orgRepo, nil, auditLogger)

	sweepJob := jobs.NewOverdueSweepJob(invoiceService, logger, metrics)
	reconcileJob := jobs.NewStockReconcileJob(pool, logger, metrics)
	expiryJob := jobs.NewSubscriptionExpiryJob(orgService, logger, metrics)
	idemCleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverdueSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskStockReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskSubscriptionExpiry, Handler: expiryJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: idemCleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OverdueSweepCron, Task: jobs.NewOverdueSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.StockReconcileCron, Task: jobs.NewStockReconcileTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.SubscriptionExpiryCron, Task: jobs.NewSubscriptionExpiryTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IdempotencyCleanCron, Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
