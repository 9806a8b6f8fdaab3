package tasks

import (
	"errors"
	"time"
)

// Status enumerates task workflow states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a unit of workshop labor. InvoiceID is a weak link set when a
// completed task is billed; the task outlives the invoice. Only completed
// tasks may be linked to an invoice.
type Task struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	Status         Status     `json:"status"`
	HoursEstimated float64    `json:"hours_estimated"`
	HoursSpent     float64    `json:"hours_spent"`
	Price          float64    `json:"price"`
	InvoiceID      *int64     `json:"invoice_id,omitempty"`
	MechanicID     *int64     `json:"mechanic_id,omitempty"`
	VehicleID      *int64     `json:"vehicle_id,omitempty"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Billable reports whether the task can be linked to an invoice.
func (t *Task) Billable() bool {
	return t.Status == StatusCompleted
}

var (
	// ErrNotFound indicates the task does not exist.
	ErrNotFound = errors.New("tasks: not found")
	// ErrNotCompleted indicates an attempt to bill an unfinished task.
	ErrNotCompleted = errors.New("tasks: only completed tasks can be billed")
	// ErrAlreadyBilled indicates the task is linked to another invoice.
	ErrAlreadyBilled = errors.New("tasks: task already linked to an invoice")
	// ErrInvalidStatus indicates an unknown workflow state.
	ErrInvalidStatus = errors.New("tasks: invalid status")
)
