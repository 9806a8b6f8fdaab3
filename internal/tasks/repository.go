package tasks

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

// ListFilter narrows task listings.
type ListFilter struct {
	Status     Status
	MechanicID int64
	VehicleID  int64
	Unbilled   bool
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, orgScope int64, filter ListFilter) ([]Task, error)
	Get(ctx context.Context, id int64) (*Task, error)
	Create(ctx context.Context, t Task) (int64, error)
	Update(ctx context.Context, t Task) error
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

const taskColumns = `id, organization_id, title, description, status, hours_estimated, hours_spent, price, invoice_id, mechanic_id, vehicle_id, scheduled_for, completed_at, created_at, updated_at`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Title, &t.Description, &t.Status,
		&t.HoursEstimated, &t.HoursSpent, &t.Price, &t.InvoiceID, &t.MechanicID,
		&t.VehicleID, &t.ScheduledFor, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List returns tasks in the organization scope matching the filter.
func (r *Repository) List(ctx context.Context, orgScope int64, filter ListFilter) ([]Task, error) {
	if orgScope == shared.ScopeNone {
		return []Task{}, nil
	}
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE ($1 = 0 OR organization_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = 0 OR mechanic_id = $3)
		  AND ($4 = 0 OR vehicle_id = $4)
		  AND (NOT $5 OR (status = 'completed' AND invoice_id IS NULL))
		ORDER BY scheduled_for NULLS LAST, id`
	rows, err := r.pool.Query(ctx, query, orgScope, string(filter.Status), filter.MechanicID, filter.VehicleID, filter.Unbilled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Title, &t.Description, &t.Status,
			&t.HoursEstimated, &t.HoursSpent, &t.Price, &t.InvoiceID, &t.MechanicID,
			&t.VehicleID, &t.ScheduledFor, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get fetches one task by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// Create inserts a task and returns its id.
func (r *Repository) Create(ctx context.Context, t Task) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tasks (organization_id, title, description, status, hours_estimated, hours_spent, price, invoice_id, mechanic_id, vehicle_id, scheduled_for, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW()) RETURNING id`,
		t.OrganizationID, t.Title, t.Description, t.Status, t.HoursEstimated, t.HoursSpent,
		t.Price, t.InvoiceID, t.MechanicID, t.VehicleID, t.ScheduledFor, t.CompletedAt).Scan(&id)
	return id, err
}

// Update rewrites the mutable columns.
func (r *Repository) Update(ctx context.Context, t Task) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET title = $2, description = $3, status = $4, hours_estimated = $5, hours_spent = $6,
		 price = $7, invoice_id = $8, mechanic_id = $9, vehicle_id = $10, scheduled_for = $11, completed_at = $12,
		 updated_at = NOW() WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Status, t.HoursEstimated, t.HoursSpent,
		t.Price, t.InvoiceID, t.MechanicID, t.VehicleID, t.ScheduledFor, t.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an unbilled task.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND invoice_id IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
