package staff

import (
	"errors"
	"time"
)

// Attendance is one mechanic's presence record for one day. CheckOut stays
// nil while the shift is open.
type Attendance struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	UserID         int64      `json:"user_id"`
	Day            time.Time  `json:"day"`
	CheckIn        time.Time  `json:"check_in"`
	CheckOut       *time.Time `json:"check_out,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// Hours returns the worked hours for a closed record, zero while open.
func (a Attendance) Hours() float64 {
	if a.CheckOut == nil {
		return 0
	}
	return a.CheckOut.Sub(a.CheckIn).Hours()
}

// MonthlySummary aggregates one user's attendance for a calendar month.
type MonthlySummary struct {
	UserID      int64   `json:"user_id"`
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	DaysPresent int     `json:"days_present"`
	TotalHours  float64 `json:"total_hours"`
}

var (
	// ErrAlreadyCheckedIn blocks a second check-in on the same day.
	ErrAlreadyCheckedIn = errors.New("staff: already checked in today")
	// ErrNotCheckedIn blocks checking out without an open record.
	ErrNotCheckedIn = errors.New("staff: no open check-in today")
)
