package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

// RepositoryPort abstracts the reporting aggregates.
type RepositoryPort interface {
	Summary(ctx context.Context, orgScope int64, rng Range) (*Summary, error)
	Monthly(ctx context.Context, orgScope int64, rng Range) ([]MonthlyPoint, error)
}

// Repository answers reporting queries straight from the transactional
// tables. Revenue counts payments received, not invoices issued, so the
// numbers reconcile with the cash position.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

func (r *Repository) Summary(ctx context.Context, orgScope int64, rng Range) (*Summary, error) {
	if orgScope == shared.ScopeNone {
		return &Summary{ExpensesByCat: map[string]float64{}, PeriodStart: rng.From, PeriodEnd: rng.To}, nil
	}

	s := Summary{ExpensesByCat: map[string]float64{}, PeriodStart: rng.From, PeriodEnd: rng.To}

	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM invoice_payments p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE ($1 = 0 OR i.organization_id = $1) AND p.date >= $2 AND p.date < $3`,
		orgScope, rng.From, rng.To).Scan(&s.PaymentsTotal)
	if err != nil {
		return nil, err
	}
	s.Revenue = s.PaymentsTotal

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'overdue'),
		       COALESCE(AVG(total), 0)
		FROM invoices
		WHERE ($1 = 0 OR organization_id = $1)
		  AND status <> 'cancelled' AND date >= $2 AND date < $3`,
		orgScope, rng.From, rng.To).Scan(&s.InvoiceCount, &s.OverdueCount, &s.AvgInvoice)
	if err != nil {
		return nil, err
	}

	// Outstanding is a point-in-time balance, not bounded by the range.
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total - paid_amount), 0)
		FROM invoices
		WHERE ($1 = 0 OR organization_id = $1)
		  AND status IN ('open', 'partially_paid', 'overdue')`,
		orgScope).Scan(&s.Outstanding)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT category, COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE ($1 = 0 OR organization_id = $1) AND date >= $2 AND date < $3
		GROUP BY category`,
		orgScope, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var amount float64
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, err
		}
		s.ExpensesByCat[category] = amount
		s.Expenses += amount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.Net = s.Revenue - s.Expenses
	return &s, nil
}

func (r *Repository) Monthly(ctx context.Context, orgScope int64, rng Range) ([]MonthlyPoint, error) {
	if orgScope == shared.ScopeNone {
		return []MonthlyPoint{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		WITH months AS (
			SELECT to_char(m, 'YYYY-MM') AS period, m AS start, m + interval '1 month' AS finish
			FROM generate_series(date_trunc('month', $2::timestamptz), date_trunc('month', $3::timestamptz), interval '1 month') AS m
		)
		SELECT months.period,
		       COALESCE((SELECT SUM(p.amount) FROM invoice_payments p
		                 JOIN invoices i ON i.id = p.invoice_id
		                 WHERE ($1 = 0 OR i.organization_id = $1)
		                   AND p.date >= months.start AND p.date < months.finish), 0),
		       COALESCE((SELECT SUM(e.amount) FROM expenses e
		                 WHERE ($1 = 0 OR e.organization_id = $1)
		                   AND e.date >= months.start AND e.date < months.finish), 0)
		FROM months
		ORDER BY months.period`,
		orgScope, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []MonthlyPoint{}
	for rows.Next() {
		var p MonthlyPoint
		if err := rows.Scan(&p.Period, &p.Revenue, &p.Expenses); err != nil {
			return nil, err
		}
		p.Net = p.Revenue - p.Expenses
		points = append(points, p)
	}
	return points, rows.Err()
}

// normalizeRange fills open bounds with the trailing twelve months.
func normalizeRange(rng Range, now time.Time) Range {
	if rng.To.IsZero() {
		rng.To = now
	}
	if rng.From.IsZero() {
		rng.From = rng.To.AddDate(-1, 0, 0)
	}
	return rng
}
