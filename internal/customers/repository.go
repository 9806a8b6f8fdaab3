package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

// ErrNotFound indicates the customer or vehicle does not exist.
var ErrNotFound = errors.New("customers: not found")

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, orgScope int64, search string) ([]Customer, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	Create(ctx context.Context, c Customer) (*Customer, error)
	Update(ctx context.Context, c Customer) (*Customer, error)
	Delete(ctx context.Context, id int64) error

	ListVehicles(ctx context.Context, orgScope int64, customerID int64) ([]Vehicle, error)
	GetVehicle(ctx context.Context, id int64) (*Vehicle, error)
	CreateVehicle(ctx context.Context, v Vehicle) (*Vehicle, error)
	UpdateVehicle(ctx context.Context, v Vehicle) (*Vehicle, error)
	DeleteVehicle(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, organization_id, name, phone, email, address, notes, created_at, updated_at`

func (r *Repository) List(ctx context.Context, orgScope int64, search string) ([]Customer, error) {
	if orgScope == shared.ScopeNone {
		return []Customer{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+customerColumns+` FROM customers
		 WHERE ($1 = 0 OR organization_id = $1)
		   AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR phone ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')
		 ORDER BY name`, orgScope, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) Create(ctx context.Context, c Customer) (*Customer, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (organization_id, name, phone, email, address, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		c.OrganizationID, c.Name, c.Phone, c.Email, c.Address, c.Notes).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) Update(ctx context.Context, c Customer) (*Customer, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE customers SET name = $2, phone = $3, email = $4, address = $5, notes = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		c.ID, c.Name, c.Phone, c.Email, c.Address, c.Notes).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	var vehicles int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vehicles WHERE customer_id = $1`, id).Scan(&vehicles); err != nil {
		return err
	}
	if vehicles > 0 {
		return ErrHasVehicles
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const vehicleColumns = `id, organization_id, customer_id, make, model, year, license_plate, vin, notes, created_at, updated_at`

func (r *Repository) ListVehicles(ctx context.Context, orgScope int64, customerID int64) ([]Vehicle, error) {
	if orgScope == shared.ScopeNone {
		return []Vehicle{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles
		 WHERE ($1 = 0 OR organization_id = $1) AND ($2 = 0 OR customer_id = $2)
		 ORDER BY make, model`, orgScope, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.OrganizationID, &v.CustomerID, &v.Make, &v.Model, &v.Year, &v.LicensePlate, &v.VIN, &v.Notes, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repository) GetVehicle(ctx context.Context, id int64) (*Vehicle, error) {
	var v Vehicle
	err := r.pool.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id).
		Scan(&v.ID, &v.OrganizationID, &v.CustomerID, &v.Make, &v.Model, &v.Year, &v.LicensePlate, &v.VIN, &v.Notes, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *Repository) CreateVehicle(ctx context.Context, v Vehicle) (*Vehicle, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO vehicles (organization_id, customer_id, make, model, year, license_plate, vin, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		v.OrganizationID, v.CustomerID, v.Make, v.Model, v.Year, v.LicensePlate, v.VIN, v.Notes).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repository) UpdateVehicle(ctx context.Context, v Vehicle) (*Vehicle, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE vehicles SET make = $2, model = $3, year = $4, license_plate = $5, vin = $6, notes = $7, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		v.ID, v.Make, v.Model, v.Year, v.LicensePlate, v.VIN, v.Notes).Scan(&v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *Repository) DeleteVehicle(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
