package customers

import (
	"errors"
	"time"
)

// Customer is a garage client. Vehicles hang off the customer but have
// their own lifecycle.
type Customer struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	Phone          *string   `json:"phone,omitempty"`
	Email          *string   `json:"email,omitempty"`
	Address        *string   `json:"address,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Vehicle belongs to a customer within the same organization.
type Vehicle struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	CustomerID     int64     `json:"customer_id"`
	Make           string    `json:"make"`
	Model          string    `json:"model"`
	Year           *int      `json:"year,omitempty"`
	LicensePlate   *string   `json:"license_plate,omitempty"`
	VIN            *string   `json:"vin,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ErrHasVehicles blocks deleting a customer that still owns vehicles.
var ErrHasVehicles = errors.New("customers: customer still has vehicles")
