package staff

import (
	"context"
	"time"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

// clock is swapped by tests.
var now = time.Now

// Service implements attendance tracking. Check-in and check-out always act
// on the calling user; managers read everyone's records, mechanics only
// their own.
type Service struct {
	repo RepositoryPort
}

// NewService builds the service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckIn opens today's attendance record for the caller.
func (s *Service) CheckIn(ctx context.Context, caller *shared.Caller, notes *string) (*Attendance, error) {
	at := now()
	if _, err := s.repo.OpenRecord(ctx, caller.UserID, dayOf(at)); err == nil {
		return nil, ErrAlreadyCheckedIn
	} else if err != ErrNotFound {
		return nil, err
	}
	return s.repo.CheckIn(ctx, Attendance{
		OrganizationID: caller.OrganizationID,
		UserID:         caller.UserID,
		Day:            dayOf(at),
		CheckIn:        at,
		Notes:          notes,
	})
}

// CheckOut closes today's open record for the caller.
func (s *Service) CheckOut(ctx context.Context, caller *shared.Caller) (*Attendance, error) {
	at := now()
	record, err := s.repo.OpenRecord(ctx, caller.UserID, dayOf(at))
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrNotCheckedIn
		}
		return nil, err
	}
	if record.CheckOut != nil {
		return nil, ErrNotCheckedIn
	}
	return s.repo.CheckOut(ctx, record.ID, at)
}

// List returns attendance records. Non-elevated mechanics only see their own.
func (s *Service) List(ctx context.Context, caller *shared.Caller, userID int64, from, to time.Time) ([]Attendance, error) {
	if caller.Role == shared.RoleMechanic || caller.Role == shared.RoleReceptionist {
		userID = caller.UserID
	}
	if to.IsZero() {
		to = now()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	return s.repo.List(ctx, caller.OrgScope(), userID, from, to)
}

// Summary aggregates one user's month. Mechanics may only read their own.
func (s *Service) Summary(ctx context.Context, caller *shared.Caller, userID int64, year, month int) (*MonthlySummary, error) {
	if caller.Role == shared.RoleMechanic || caller.Role == shared.RoleReceptionist {
		userID = caller.UserID
	}
	if year == 0 || month == 0 {
		t := now()
		year, month = t.Year(), int(t.Month())
	}
	return s.repo.MonthlySummary(ctx, caller.OrgScope(), userID, year, month)
}
