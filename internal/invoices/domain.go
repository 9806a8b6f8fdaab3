package invoices

import "time"

// Status enumerates invoice lifecycle states. Cancellation is a status, not a
// deletion: invoices are never physically removed in the normal flow.
type Status string

const (
	StatusOpen          Status = "open"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
	StatusCancelled     Status = "cancelled"
)

// Editable reports whether the invoice may still be mutated. Paid and
// cancelled invoices are locked against item and payment changes.
func (s Status) Editable() bool {
	return s != StatusPaid && s != StatusCancelled
}

// DiscountType enumerates how an invoice-level discount is interpreted.
type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// ItemType enumerates billable line kinds.
type ItemType string

const (
	ItemPart    ItemType = "part"
	ItemLabor   ItemType = "labor"
	ItemService ItemType = "service"
)

// PaymentMethod enumerates accepted payment instruments.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
)

// Valid reports whether the method is one of the known values.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodCheck:
		return true
	}
	return false
}

// Invoice is the aggregate root for billing. Items are ordered; insertion
// order is display order.
type Invoice struct {
	ID             int64        `json:"id"`
	OrganizationID int64        `json:"organization_id"`
	Number         string       `json:"number"`
	CustomerID     int64        `json:"customer_id"`
	VehicleID      *int64       `json:"vehicle_id,omitempty"`
	Date           time.Time    `json:"date"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	TaxRate        float64      `json:"tax_rate"`
	DiscountType   DiscountType `json:"discount_type"`
	DiscountValue  float64      `json:"discount_value"`
	Status         Status       `json:"status"`
	Notes          *string      `json:"notes,omitempty"`
	Items          []Item       `json:"items,omitempty"`
	Payments       []Payment    `json:"payments,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Item is a billable row on an invoice. PartID and TaskID are weak
// references: the part/task lives independently of the invoice. The creates_*
// flags are one-time directives consumed at save time.
type Item struct {
	ID          int64    `json:"id"`
	InvoiceID   int64    `json:"invoice_id"`
	Type        ItemType `json:"type"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	Price       float64  `json:"price"`
	PartID      *int64   `json:"part_id,omitempty"`
	TaskID      *int64   `json:"task_id,omitempty"`
	CreatesPart bool     `json:"creates_inventory_part,omitempty"`
	CreatesTask bool     `json:"creates_task,omitempty"`
	IsAutoAdded bool     `json:"is_auto_added,omitempty"`
	SortOrder   int      `json:"sort_order"`
}

// Payment is owned by its invoice.
type Payment struct {
	ID        int64         `json:"id"`
	InvoiceID int64         `json:"invoice_id"`
	Amount    float64       `json:"amount"`
	Date      time.Time     `json:"date"`
	Method    PaymentMethod `json:"method"`
	Notes     *string       `json:"notes,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// PaidAmount sums all recorded payments.
func (inv *Invoice) PaidAmount() float64 {
	var paid float64
	for _, p := range inv.Payments {
		paid += p.Amount
	}
	return paid
}

// BalanceDue returns total minus paid, floored at zero by invariant.
func (inv *Invoice) BalanceDue() float64 {
	due := inv.Totals().Total - inv.PaidAmount()
	if due < 0 {
		return 0
	}
	return due
}

// Totals recomputes the financial summary from the current item list.
func (inv *Invoice) Totals() Totals {
	return ComputeTotals(inv.Items, inv.DiscountType, inv.DiscountValue, inv.TaxRate)
}
