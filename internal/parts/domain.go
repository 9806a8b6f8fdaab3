package parts

import (
	"errors"
	"time"
)

// Part is an inventory record. Quantity is on-hand stock, mutated by the
// invoice sync bridge and manual adjustments. InvoiceIDs tracks which
// invoices currently consume stock from this part; it is assignment
// bookkeeping, not ownership.
type Part struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	SKU            *string   `json:"sku,omitempty"`
	Quantity       float64   `json:"quantity"`
	Price          float64   `json:"price"`
	MinStock       float64   `json:"min_stock"`
	InvoiceIDs     []int64   `json:"invoice_ids"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ReferencedBy reports whether the part is assigned to the invoice.
func (p *Part) ReferencedBy(invoiceID int64) bool {
	for _, id := range p.InvoiceIDs {
		if id == invoiceID {
			return true
		}
	}
	return false
}

// LowStock reports whether on-hand quantity fell to or below the threshold.
func (p *Part) LowStock() bool {
	return p.MinStock > 0 && p.Quantity <= p.MinStock
}

// ErrInvalidQuantity indicates a non-positive stock quantity input.
var ErrInvalidQuantity = errors.New("parts: quantity must be positive")

// ErrInvalidPrice indicates a negative price input.
var ErrInvalidPrice = errors.New("parts: price must be >= 0")
