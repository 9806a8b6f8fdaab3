package expenses

import (
	"errors"
	"time"
)

// Category groups expenses for reporting.
type Category string

const (
	CategoryParts     Category = "parts"
	CategoryRent      Category = "rent"
	CategorySalaries  Category = "salaries"
	CategoryUtilities Category = "utilities"
	CategoryTools     Category = "tools"
	CategoryOther     Category = "other"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryParts, CategoryRent, CategorySalaries, CategoryUtilities, CategoryTools, CategoryOther:
		return true
	}
	return false
}

// Expense is a cost entry logged against the organization.
type Expense struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Category       Category  `json:"category"`
	Description    string    `json:"description"`
	Amount         float64   `json:"amount"`
	Date           time.Time `json:"date"`
	Notes          *string   `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ErrInvalidAmount rejects non-positive expense amounts.
var ErrInvalidAmount = errors.New("expenses: amount must be positive")
