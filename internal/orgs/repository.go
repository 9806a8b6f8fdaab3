package orgs

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the organization or subscription does not exist.
var ErrNotFound = errors.New("orgs: not found")

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context) ([]Organization, error)
	Get(ctx context.Context, id int64) (*Organization, error)
	Create(ctx context.Context, o Organization) (*Organization, error)
	Update(ctx context.Context, o Organization) (*Organization, error)
	Delete(ctx context.Context, id int64) error
	MemberCount(ctx context.Context, id int64) (int, error)

	GetSubscription(ctx context.Context, orgID int64) (*Subscription, error)
	UpsertSubscription(ctx context.Context, s Subscription) (*Subscription, error)
	ExpireSubscriptions(ctx context.Context, asOf time.Time) (int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgColumns = `id, name, currency, phone, address, default_tax_rate, created_at, updated_at`

func (r *Repository) List(ctx context.Context) ([]Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Currency, &o.Phone, &o.Address, &o.TaxRate, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (*Organization, error) {
	var o Organization
	err := r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.Currency, &o.Phone, &o.Address, &o.TaxRate, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *Repository) Create(ctx context.Context, o Organization) (*Organization, error) {
	if o.Currency == "" {
		o.Currency = "USD"
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO organizations (name, currency, phone, address, default_tax_rate, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		o.Name, o.Currency, o.Phone, o.Address, o.TaxRate).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) Update(ctx context.Context, o Organization) (*Organization, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE organizations SET name = $2, currency = $3, phone = $4, address = $5, default_tax_rate = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		o.ID, o.Name, o.Currency, o.Phone, o.Address, o.TaxRate).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MemberCount(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE organization_id = $1`, id).Scan(&n)
	return n, err
}

const subColumns = `id, organization_id, plan, status, period_start, period_end, updated_at`

func (r *Repository) GetSubscription(ctx context.Context, orgID int64) (*Subscription, error) {
	var s Subscription
	err := r.pool.QueryRow(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE organization_id = $1`, orgID).
		Scan(&s.ID, &s.OrganizationID, &s.Plan, &s.Status, &s.PeriodStart, &s.PeriodEnd, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repository) UpsertSubscription(ctx context.Context, s Subscription) (*Subscription, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO subscriptions (organization_id, plan, status, period_start, period_end, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (organization_id) DO UPDATE
		 SET plan = EXCLUDED.plan, status = EXCLUDED.status,
		     period_start = EXCLUDED.period_start, period_end = EXCLUDED.period_end,
		     updated_at = NOW()
		 RETURNING id, updated_at`,
		s.OrganizationID, s.Plan, s.Status, s.PeriodStart, s.PeriodEnd).
		Scan(&s.ID, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ExpireSubscriptions flips active or trial subscriptions whose period has
// ended. Returns the number of rows touched.
func (r *Repository) ExpireSubscriptions(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE subscriptions SET status = 'expired', updated_at = NOW()
		 WHERE status IN ('trial', 'active', 'past_due') AND period_end < $1`, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
