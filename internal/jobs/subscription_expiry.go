package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// SubscriptionExpirer is the slice of the orgs service the expiry job needs.
type SubscriptionExpirer interface {
	ExpireSubscriptions(ctx context.Context) (int64, error)
}

// SubscriptionExpiryJob flips lapsed subscriptions to expired.
type SubscriptionExpiryJob struct {
	Orgs    SubscriptionExpirer
	Logger  *slog.Logger
	Metrics *Metrics
}

// NewSubscriptionExpiryJob wires dependencies for the expiry handler.
func NewSubscriptionExpiryJob(orgs SubscriptionExpirer, logger *slog.Logger, metrics *Metrics) *SubscriptionExpiryJob {
	return &SubscriptionExpiryJob{Orgs: orgs, Logger: logger, Metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *SubscriptionExpiryJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Orgs == nil {
		return errors.New("subscription expiry: handler not configured")
	}
	tracker := j.Metrics.Track(TaskSubscriptionExpiry)

	expired, err := j.Orgs.ExpireSubscriptions(ctx)
	if err != nil {
		j.logger().Error("subscription expiry failed", slog.Any("error", err))
		return tracker.End(err)
	}
	if expired > 0 {
		j.logger().Info("subscription expiry", slog.Int64("subscriptions_expired", expired))
	}
	return tracker.End(nil)
}

func (j *SubscriptionExpiryJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
