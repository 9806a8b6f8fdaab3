package parts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

// ErrNotFound indicates the part does not exist.
var ErrNotFound = errors.New("parts: not found")

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, orgScope int64, search string) ([]Part, error)
	Get(ctx context.Context, id int64) (*Part, error)
	Create(ctx context.Context, p Part) (int64, error)
	Update(ctx context.Context, p Part) error
	Delete(ctx context.Context, id int64) error
	AdjustQuantity(ctx context.Context, id int64, delta float64) (float64, error)
	ListLowStock(ctx context.Context, orgScope int64) ([]Part, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const partColumns = `id, organization_id, name, sku, quantity, price, min_stock, invoice_ids, created_at, updated_at`

func scanPart(row pgx.Row) (*Part, error) {
	var p Part
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.SKU, &p.Quantity, &p.Price, &p.MinStock, &p.InvoiceIDs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns parts visible in the organization scope, optionally filtered
// by a name/SKU search term.
func (r *Repository) List(ctx context.Context, orgScope int64, search string) ([]Part, error) {
	if orgScope == shared.ScopeNone {
		return []Part{}, nil
	}
	query := `SELECT ` + partColumns + ` FROM parts WHERE ($1 = 0 OR organization_id = $1) AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%') ORDER BY name`
	rows, err := r.pool.Query(ctx, query, orgScope, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Part
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.SKU, &p.Quantity, &p.Price, &p.MinStock, &p.InvoiceIDs, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get fetches one part by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Part, error) {
	return scanPart(r.pool.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE id = $1`, id))
}

// Create inserts a part and returns its id.
func (r *Repository) Create(ctx context.Context, p Part) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO parts (organization_id, name, sku, quantity, price, min_stock, invoice_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`,
		p.OrganizationID, p.Name, p.SKU, p.Quantity, p.Price, p.MinStock, p.InvoiceIDs).Scan(&id)
	return id, err
}

// Update rewrites the mutable columns.
func (r *Repository) Update(ctx context.Context, p Part) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE parts SET name = $2, sku = $3, price = $4, min_stock = $5, updated_at = NOW() WHERE id = $1`,
		p.ID, p.Name, p.SKU, p.Price, p.MinStock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a part that no invoice references.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM parts WHERE id = $1 AND cardinality(invoice_ids) = 0`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustQuantity applies a stock delta with the zero floor and returns the
// resulting quantity.
func (r *Repository) AdjustQuantity(ctx context.Context, id int64, delta float64) (float64, error) {
	var qty float64
	err := r.pool.QueryRow(ctx,
		`UPDATE parts SET quantity = GREATEST(quantity + $2, 0), updated_at = NOW() WHERE id = $1 RETURNING quantity`,
		id, delta).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return qty, nil
}

// ListLowStock returns parts at or below their minimum stock threshold.
func (r *Repository) ListLowStock(ctx context.Context, orgScope int64) ([]Part, error) {
	if orgScope == shared.ScopeNone {
		return []Part{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+partColumns+` FROM parts WHERE ($1 = 0 OR organization_id = $1) AND min_stock > 0 AND quantity <= min_stock ORDER BY name`,
		orgScope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Part
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.SKU, &p.Quantity, &p.Price, &p.MinStock, &p.InvoiceIDs, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
