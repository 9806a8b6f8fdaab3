package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueSweep flips past-due invoices to overdue.
	TaskOverdueSweep = "invoices:overdue_sweep"
	// TaskStockReconcile audits part quantities against invoice references.
	TaskStockReconcile = "parts:stock_reconcile"
	// TaskSubscriptionExpiry flips lapsed subscriptions to expired.
	TaskSubscriptionExpiry = "orgs:subscription_expiry"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

// NewOverdueSweepTask constructs the nightly overdue sweep task.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueSweep, nil)
}

// NewStockReconcileTask constructs the stock drift audit task.
func NewStockReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskStockReconcile, nil)
}

// NewSubscriptionExpiryTask constructs the subscription expiry task.
func NewSubscriptionExpiryTask() *asynq.Task {
	return asynq.NewTask(TaskSubscriptionExpiry, nil)
}

// NewIdempotencyCleanupTask constructs the idempotency key pruning task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
