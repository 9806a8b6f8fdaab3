package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockReconcileJob audits the denormalized links between parts and
// invoices. Part quantities move inside the same transaction as invoice
// writes, so drift here means a bug or manual data surgery; the job only
// reports, it never repairs.
type StockReconcileJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *Metrics
}

// NewStockReconcileJob wires dependencies for the reconcile handler.
func NewStockReconcileJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *Metrics) *StockReconcileJob {
	return &StockReconcileJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *StockReconcileJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	tracker := j.Metrics.Track(TaskStockReconcile)

	drift, err := j.audit(ctx)
	if err != nil {
		j.logger().Error("stock reconcile failed", slog.Any("error", err))
		return tracker.End(err)
	}
	if drift > 0 {
		j.Metrics.AddDrift(drift)
		j.logger().Warn("stock reconcile found drift", slog.Int("rows", drift))
	}
	return tracker.End(nil)
}

func (j *StockReconcileJob) audit(ctx context.Context) (int, error) {
	drift := 0

	// Stale back references: a part still lists an invoice that was
	// deleted or cancelled, meaning its reservation was never released.
	rows, err := j.Pool.Query(ctx, `
		SELECT p.id, p.name, ref.invoice_id
		FROM parts p, unnest(p.invoice_ids) AS ref(invoice_id)
		LEFT JOIN invoices i ON i.id = ref.invoice_id
		WHERE i.id IS NULL OR i.status = 'cancelled'`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var partID, invoiceID int64
		var name string
		if err := rows.Scan(&partID, &name, &invoiceID); err != nil {
			return 0, err
		}
		drift++
		j.logger().Warn("stale invoice reference on part",
			slog.Int64("part_id", partID),
			slog.String("part", name),
			slog.Int64("invoice_id", invoiceID))
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	// One-sided links: an active invoice item points at a part whose
	// invoice_ids no longer carries the invoice.
	missing, err := j.Pool.Query(ctx, `
		SELECT ii.invoice_id, ii.part_id
		FROM invoice_items ii
		JOIN invoices i ON i.id = ii.invoice_id AND i.status <> 'cancelled'
		JOIN parts p ON p.id = ii.part_id
		WHERE ii.part_id IS NOT NULL AND NOT (ii.invoice_id = ANY(p.invoice_ids))`)
	if err != nil {
		return 0, err
	}
	defer missing.Close()
	for missing.Next() {
		var invoiceID, partID int64
		if err := missing.Scan(&invoiceID, &partID); err != nil {
			return 0, err
		}
		drift++
		j.logger().Warn("invoice item missing part back reference",
			slog.Int64("invoice_id", invoiceID),
			slog.Int64("part_id", partID))
	}
	return drift, missing.Err()
}

func (j *StockReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
