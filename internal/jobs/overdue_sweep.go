package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// InvoiceSweeper is the slice of the invoice service the sweep job needs.
type InvoiceSweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

// OverdueSweepJob marks open invoices past their due date as overdue.
type OverdueSweepJob struct {
	Invoices InvoiceSweeper
	Logger   *slog.Logger
	Metrics  *Metrics
}

// NewOverdueSweepJob wires dependencies for the sweep handler.
func NewOverdueSweepJob(invoices InvoiceSweeper, logger *slog.Logger, metrics *Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{Invoices: invoices, Logger: logger, Metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *OverdueSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	tracker := j.Metrics.Track(TaskOverdueSweep)

	flipped, err := j.Invoices.SweepOverdue(ctx)
	if err != nil {
		j.logger().Error("overdue sweep failed", slog.Any("error", err))
		return tracker.End(err)
	}
	if flipped > 0 {
		j.logger().Info("overdue sweep", slog.Int64("invoices_flipped", flipped))
	}
	return tracker.End(nil)
}

func (j *OverdueSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
