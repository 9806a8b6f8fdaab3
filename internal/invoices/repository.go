package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gearbox-hq/gearbox/internal/parts"
	"github.com/gearbox-hq/gearbox/internal/platform/db"
	"github.com/gearbox-hq/gearbox/internal/shared"
	"github.com/gearbox-hq/gearbox/internal/tasks"
)

// ErrNotFound indicates the invoice or payment does not exist.
var ErrNotFound = errors.New("invoices: not found")

// ErrNumberTaken indicates a concurrent create claimed the invoice number
// first. Callers regenerate the number and retry.
var ErrNumberTaken = errors.New("invoices: number already taken")

// ListFilter narrows invoice listings.
type ListFilter struct {
	CustomerID int64
	VehicleID  int64
	Status     Status
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, orgScope int64, filter ListFilter) ([]Invoice, int, error)
	GenerateNumber(ctx context.Context, orgID int64, date time.Time) (string, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes every operation the service runs inside one
// transaction: invoice writes plus the part/task stores the sync bridge
// drives. One failed step rolls back the whole reconciliation.
type TxRepository interface {
	PartStore
	TaskStore

	GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error)
	CreateInvoice(ctx context.Context, inv Invoice, totals Totals) (int64, error)
	UpdateInvoice(ctx context.Context, inv Invoice, totals Totals) error
	UpdateStatus(ctx context.Context, id int64, status Status, paidAmount float64) error
	DeleteInvoice(ctx context.Context, id int64) error

	InsertItem(ctx context.Context, item Item) (int64, error)
	DeleteItems(ctx context.Context, invoiceID int64) error
	DeleteItem(ctx context.Context, itemID int64) error

	InsertPayment(ctx context.Context, p Payment) (int64, error)
	DeletePayment(ctx context.Context, paymentID int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps fn in a repeatable-read transaction; the TxRepository it
// receives shares that transaction for invoice, part and task writes.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const invoiceColumns = `id, organization_id, number, customer_id, vehicle_id, date, due_date, tax_rate, discount_type, discount_value, status, notes, paid_amount, created_at, updated_at`

// Get fetches an invoice with its items and payments.
func (r *Repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if inv.Items, err = queryItems(ctx, r.pool, id); err != nil {
		return nil, err
	}
	if inv.Payments, err = queryPayments(ctx, r.pool, id); err != nil {
		return nil, err
	}
	return inv, nil
}

// List returns invoices in the organization scope matching the filter,
// together with the unpaginated count.
func (r *Repository) List(ctx context.Context, orgScope int64, filter ListFilter) ([]Invoice, int, error) {
	if orgScope == shared.ScopeNone {
		return []Invoice{}, 0, nil
	}
	where := `WHERE ($1 = 0 OR organization_id = $1)
		AND ($2 = 0 OR customer_id = $2)
		AND ($3 = 0 OR vehicle_id = $3)
		AND ($4 = '' OR status = $4)
		AND ($5::timestamptz IS NULL OR date >= $5)
		AND ($6::timestamptz IS NULL OR date <= $6)`
	args := []any{orgScope, filter.CustomerID, filter.VehicleID, string(filter.Status), filter.DateFrom, filter.DateTo}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices ` + where +
		fmt.Sprintf(` ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoiceRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		if out[i].Items, err = queryItems(ctx, r.pool, out[i].ID); err != nil {
			return nil, 0, err
		}
		if out[i].Payments, err = queryPayments(ctx, r.pool, out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// GenerateNumber produces INV-{YYMM}-{SEQ} per organization. The sequence
// continues from the highest suffix already issued for the month, so deleted
// invoices never free a number for reuse. A concurrent create can still
// claim the same number first; CreateInvoice reports that as ErrNumberTaken
// and the service retries with a fresh number.
func (r *Repository) GenerateNumber(ctx context.Context, orgID int64, date time.Time) (string, error) {
	prefix := fmt.Sprintf("INV-%s-", date.Format("0601"))
	var seq int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(substring(number FROM 10)::BIGINT), 0)
		 FROM invoices WHERE organization_id = $1 AND number LIKE $2 || '%'`,
		orgID, prefix).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// MarkOverdue flips open and partially paid invoices whose due date has
// passed. Returns the number of invoices touched.
func (r *Repository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = 'overdue', updated_at = NOW()
		 WHERE status IN ('open', 'partially_paid') AND due_date IS NOT NULL AND due_date < $1`, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var paid float64
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Number, &inv.CustomerID, &inv.VehicleID,
		&inv.Date, &inv.DueDate, &inv.TaxRate, &inv.DiscountType, &inv.DiscountValue,
		&inv.Status, &inv.Notes, &paid, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = paid // derived from payments; the column is a denormalised mirror
	return &inv, nil
}

func scanInvoiceRows(rows pgx.Rows) (*Invoice, error) {
	var inv Invoice
	var paid float64
	err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.Number, &inv.CustomerID, &inv.VehicleID,
		&inv.Date, &inv.DueDate, &inv.TaxRate, &inv.DiscountType, &inv.DiscountValue,
		&inv.Status, &inv.Notes, &paid, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func queryItems(ctx context.Context, q rowQuerier, invoiceID int64) ([]Item, error) {
	rows, err := q.Query(ctx,
		`SELECT id, invoice_id, type, description, quantity, price, part_id, task_id, creates_part, creates_task, is_auto_added, sort_order
		 FROM invoice_items WHERE invoice_id = $1 ORDER BY sort_order, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Type, &it.Description, &it.Quantity,
			&it.Price, &it.PartID, &it.TaskID, &it.CreatesPart, &it.CreatesTask, &it.IsAutoAdded, &it.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func queryPayments(ctx context.Context, q rowQuerier, invoiceID int64) ([]Payment, error) {
	rows, err := q.Query(ctx,
		`SELECT id, invoice_id, amount, date, method, notes, created_at
		 FROM invoice_payments WHERE invoice_id = $1 ORDER BY date, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Date, &p.Method, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if inv.Items, err = queryItems(ctx, r.tx, id); err != nil {
		return nil, err
	}
	if inv.Payments, err = queryPayments(ctx, r.tx, id); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *txRepo) CreateInvoice(ctx context.Context, inv Invoice, totals Totals) (int64, error) {
	t := totals.Rounded()
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO invoices (organization_id, number, customer_id, vehicle_id, date, due_date, tax_rate, discount_type, discount_value, status, notes, subtotal, discount_amount, tax, total, paid_amount, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 0, NOW(), NOW()) RETURNING id`,
		inv.OrganizationID, inv.Number, inv.CustomerID, inv.VehicleID, inv.Date, inv.DueDate,
		inv.TaxRate, inv.DiscountType, inv.DiscountValue, inv.Status, inv.Notes,
		t.Subtotal, t.DiscountAmount, t.Tax, t.Total).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return 0, ErrNumberTaken
	}
	return id, err
}

func (r *txRepo) UpdateInvoice(ctx context.Context, inv Invoice, totals Totals) error {
	t := totals.Rounded()
	tag, err := r.tx.Exec(ctx,
		`UPDATE invoices SET customer_id = $2, vehicle_id = $3, date = $4, due_date = $5, tax_rate = $6,
		 discount_type = $7, discount_value = $8, status = $9, notes = $10,
		 subtotal = $11, discount_amount = $12, tax = $13, total = $14, updated_at = NOW()
		 WHERE id = $1`,
		inv.ID, inv.CustomerID, inv.VehicleID, inv.Date, inv.DueDate, inv.TaxRate,
		inv.DiscountType, inv.DiscountValue, inv.Status, inv.Notes,
		t.Subtotal, t.DiscountAmount, t.Tax, t.Total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) UpdateStatus(ctx context.Context, id int64, status Status, paidAmount float64) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE invoices SET status = $2, paid_amount = $3, updated_at = NOW() WHERE id = $1`,
		id, status, Round2(paidAmount))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) DeleteInvoice(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO invoice_items (invoice_id, type, description, quantity, price, part_id, task_id, creates_part, creates_task, is_auto_added, sort_order)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		item.InvoiceID, item.Type, item.Description, item.Quantity, item.Price,
		item.PartID, item.TaskID, item.CreatesPart, item.CreatesTask, item.IsAutoAdded, item.SortOrder).Scan(&id)
	return id, err
}

func (r *txRepo) DeleteItems(ctx context.Context, invoiceID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID)
	return err
}

func (r *txRepo) DeleteItem(ctx context.Context, itemID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM invoice_items WHERE id = $1`, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO invoice_payments (invoice_id, amount, date, method, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id`,
		p.InvoiceID, Round2(p.Amount), p.Date, p.Method, p.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) DeletePayment(ctx context.Context, paymentID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM invoice_payments WHERE id = $1`, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PartStore implementation scoped to the transaction.

func (r *txRepo) GetForUpdate(ctx context.Context, id int64) (*parts.Part, error) {
	var p parts.Part
	err := r.tx.QueryRow(ctx,
		`SELECT id, organization_id, name, sku, quantity, price, min_stock, invoice_ids, created_at, updated_at
		 FROM parts WHERE id = $1 FOR UPDATE`, id).
		Scan(&p.ID, &p.OrganizationID, &p.Name, &p.SKU, &p.Quantity, &p.Price, &p.MinStock, &p.InvoiceIDs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, parts.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *txRepo) AdjustQuantity(ctx context.Context, id int64, delta float64) (float64, error) {
	var qty float64
	err := r.tx.QueryRow(ctx,
		`UPDATE parts SET quantity = GREATEST(quantity + $2, 0), updated_at = NOW() WHERE id = $1 RETURNING quantity`,
		id, delta).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, parts.ErrNotFound
		}
		return 0, err
	}
	return qty, nil
}

func (r *txRepo) AddInvoiceRef(ctx context.Context, partID, invoiceID int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE parts SET invoice_ids = array_append(invoice_ids, $2), updated_at = NOW()
		 WHERE id = $1 AND NOT ($2 = ANY(invoice_ids))`, partID, invoiceID)
	return err
}

func (r *txRepo) RemoveInvoiceRef(ctx context.Context, partID, invoiceID int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE parts SET invoice_ids = array_remove(invoice_ids, $2), updated_at = NOW() WHERE id = $1`,
		partID, invoiceID)
	return err
}

func (r *txRepo) Create(ctx context.Context, p parts.Part) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO parts (organization_id, name, sku, quantity, price, min_stock, invoice_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`,
		p.OrganizationID, p.Name, p.SKU, p.Quantity, p.Price, p.MinStock, p.InvoiceIDs).Scan(&id)
	return id, err
}

// TaskStore implementation scoped to the transaction.

func (r *txRepo) GetTaskForUpdate(ctx context.Context, id int64) (*tasks.Task, error) {
	var t tasks.Task
	err := r.tx.QueryRow(ctx,
		`SELECT id, organization_id, title, description, status, hours_estimated, hours_spent, price, invoice_id, mechanic_id, vehicle_id, scheduled_for, completed_at, created_at, updated_at
		 FROM tasks WHERE id = $1 FOR UPDATE`, id).
		Scan(&t.ID, &t.OrganizationID, &t.Title, &t.Description, &t.Status,
			&t.HoursEstimated, &t.HoursSpent, &t.Price, &t.InvoiceID, &t.MechanicID,
			&t.VehicleID, &t.ScheduledFor, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tasks.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *txRepo) LinkInvoice(ctx context.Context, taskID, invoiceID int64, price float64) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE tasks SET invoice_id = $2, price = $3, updated_at = NOW() WHERE id = $1`,
		taskID, invoiceID, Round2(price))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tasks.ErrNotFound
	}
	return nil
}

func (r *txRepo) UnlinkInvoice(ctx context.Context, taskID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE tasks SET invoice_id = NULL, updated_at = NOW() WHERE id = $1`, taskID)
	return err
}

func (r *txRepo) CreateTask(ctx context.Context, t tasks.Task) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO tasks (organization_id, title, description, status, hours_estimated, hours_spent, price, invoice_id, mechanic_id, vehicle_id, scheduled_for, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW(), NOW()) RETURNING id`,
		t.OrganizationID, t.Title, t.Description, t.Status, t.HoursEstimated, t.HoursSpent,
		Round2(t.Price), t.InvoiceID, t.MechanicID, t.VehicleID, t.ScheduledFor).Scan(&id)
	return id, err
}
