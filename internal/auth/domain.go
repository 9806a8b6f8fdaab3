package auth

import (
	"time"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID             int64       `json:"id"`
	OrganizationID int64       `json:"organization_id"`
	Email          string      `json:"email"`
	Name           string      `json:"name"`
	Role           shared.Role `json:"role"`
	PasswordHash   string      `json:"-"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Caller maps the account to its request identity.
func (u *User) Caller() *shared.Caller {
	return &shared.Caller{
		UserID:         u.ID,
		Email:          u.Email,
		OrganizationID: u.OrganizationID,
		Role:           u.Role,
	}
}
