package orgs

import (
	"errors"
	"time"
)

// Organization is the tenant boundary. Currency is the ISO 4217 code every
// money value in the tenant is displayed in.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	TaxRate   float64   `json:"default_tax_rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubscriptionStatus enumerates billing states.
type SubscriptionStatus string

const (
	SubTrial     SubscriptionStatus = "trial"
	SubActive    SubscriptionStatus = "active"
	SubPastDue   SubscriptionStatus = "past_due"
	SubCancelled SubscriptionStatus = "cancelled"
	SubExpired   SubscriptionStatus = "expired"
)

// Subscription carries the organization's plan and billing period. One row
// per organization.
type Subscription struct {
	ID             int64              `json:"id"`
	OrganizationID int64              `json:"organization_id"`
	Plan           string             `json:"plan"`
	Status         SubscriptionStatus `json:"status"`
	PeriodStart    time.Time          `json:"period_start"`
	PeriodEnd      time.Time          `json:"period_end"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Active reports whether the tenant may use the application.
func (s Subscription) Active() bool {
	return s.Status == SubTrial || s.Status == SubActive || s.Status == SubPastDue
}

var (
	// ErrUnknownAction rejects RPC payloads with an unrecognised action.
	ErrUnknownAction = errors.New("orgs: unknown action")
	// ErrHasMembers blocks deleting an organization with remaining users.
	ErrHasMembers = errors.New("orgs: organization still has users")
)
