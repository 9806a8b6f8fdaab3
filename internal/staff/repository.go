package staff

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

// ErrNotFound indicates the attendance record does not exist.
var ErrNotFound = errors.New("staff: not found")

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	OpenRecord(ctx context.Context, userID int64, day time.Time) (*Attendance, error)
	CheckIn(ctx context.Context, a Attendance) (*Attendance, error)
	CheckOut(ctx context.Context, id int64, at time.Time) (*Attendance, error)
	List(ctx context.Context, orgScope int64, userID int64, from, to time.Time) ([]Attendance, error)
	MonthlySummary(ctx context.Context, orgScope int64, userID int64, year, month int) (*MonthlySummary, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const attendanceColumns = `id, organization_id, user_id, day, check_in, check_out, notes`

// OpenRecord returns the user's record for the given day, or ErrNotFound.
func (r *Repository) OpenRecord(ctx context.Context, userID int64, day time.Time) (*Attendance, error) {
	var a Attendance
	err := r.pool.QueryRow(ctx,
		`SELECT `+attendanceColumns+` FROM attendance WHERE user_id = $1 AND day = $2::date`, userID, day).
		Scan(&a.ID, &a.OrganizationID, &a.UserID, &a.Day, &a.CheckIn, &a.CheckOut, &a.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repository) CheckIn(ctx context.Context, a Attendance) (*Attendance, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attendance (organization_id, user_id, day, check_in, notes)
		 VALUES ($1, $2, $3::date, $4, $5) RETURNING id`,
		a.OrganizationID, a.UserID, a.Day, a.CheckIn, a.Notes).Scan(&a.ID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) CheckOut(ctx context.Context, id int64, at time.Time) (*Attendance, error) {
	var a Attendance
	err := r.pool.QueryRow(ctx,
		`UPDATE attendance SET check_out = $2 WHERE id = $1
		 RETURNING `+attendanceColumns, id, at).
		Scan(&a.ID, &a.OrganizationID, &a.UserID, &a.Day, &a.CheckIn, &a.CheckOut, &a.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repository) List(ctx context.Context, orgScope int64, userID int64, from, to time.Time) ([]Attendance, error) {
	if orgScope == shared.ScopeNone {
		return []Attendance{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+attendanceColumns+` FROM attendance
		 WHERE ($1 = 0 OR organization_id = $1)
		   AND ($2 = 0 OR user_id = $2)
		   AND day >= $3::date AND day <= $4::date
		 ORDER BY day DESC, user_id`, orgScope, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attendance
	for rows.Next() {
		var a Attendance
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.UserID, &a.Day, &a.CheckIn, &a.CheckOut, &a.Notes); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) MonthlySummary(ctx context.Context, orgScope int64, userID int64, year, month int) (*MonthlySummary, error) {
	if orgScope == shared.ScopeNone {
		return &MonthlySummary{UserID: userID, Year: year, Month: month}, nil
	}
	summary := MonthlySummary{UserID: userID, Year: year, Month: month}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(EXTRACT(EPOCH FROM (check_out - check_in)) / 3600), 0)
		 FROM attendance
		 WHERE ($1 = 0 OR organization_id = $1)
		   AND user_id = $2
		   AND EXTRACT(YEAR FROM day) = $3 AND EXTRACT(MONTH FROM day) = $4
		   AND check_out IS NOT NULL`, orgScope, userID, year, month).
		Scan(&summary.DaysPresent, &summary.TotalHours)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
