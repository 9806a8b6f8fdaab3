package expenses

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

// ErrNotFound indicates the expense does not exist.
var ErrNotFound = errors.New("expenses: not found")

// ListFilter narrows expense listings.
type ListFilter struct {
	Category Category
	DateFrom *time.Time
	DateTo   *time.Time
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, orgScope int64, filter ListFilter) ([]Expense, error)
	Get(ctx context.Context, id int64) (*Expense, error)
	Create(ctx context.Context, e Expense) (*Expense, error)
	Update(ctx context.Context, e Expense) (*Expense, error)
	Delete(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const expenseColumns = `id, organization_id, category, description, amount, date, notes, created_at, updated_at`

func (r *Repository) List(ctx context.Context, orgScope int64, filter ListFilter) ([]Expense, error) {
	if orgScope == shared.ScopeNone {
		return []Expense{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE ($1 = 0 OR organization_id = $1)
		   AND ($2 = '' OR category = $2)
		   AND ($3::timestamptz IS NULL OR date >= $3)
		   AND ($4::timestamptz IS NULL OR date <= $4)
		 ORDER BY date DESC, id DESC`,
		orgScope, string(filter.Category), filter.DateFrom, filter.DateTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Category, &e.Description, &e.Amount, &e.Date, &e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (*Expense, error) {
	var e Expense
	err := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id).
		Scan(&e.ID, &e.OrganizationID, &e.Category, &e.Description, &e.Amount, &e.Date, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *Repository) Create(ctx context.Context, e Expense) (*Expense, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO expenses (organization_id, category, description, amount, date, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		e.OrganizationID, e.Category, e.Description, e.Amount, e.Date, e.Notes).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) Update(ctx context.Context, e Expense) (*Expense, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE expenses SET category = $2, description = $3, amount = $4, date = $5, notes = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		e.ID, e.Category, e.Description, e.Amount, e.Date, e.Notes).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
