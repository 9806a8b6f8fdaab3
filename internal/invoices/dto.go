package invoices

import "time"

// CreateInput carries a new invoice from the transport layer.
type CreateInput struct {
	CustomerID    int64        `json:"customer_id" validate:"required,gt=0"`
	VehicleID     *int64       `json:"vehicle_id" validate:"omitempty,gt=0"`
	Date          time.Time    `json:"date" validate:"required"`
	DueDate       *time.Time   `json:"due_date"`
	TaxRate       float64      `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountType  DiscountType `json:"discount_type" validate:"omitempty,oneof=none percentage fixed"`
	DiscountValue float64      `json:"discount_value" validate:"gte=0"`
	Notes         *string      `json:"notes"`
	Items         []ItemInput  `json:"items" validate:"dive"`
}

// UpdateInput replaces the invoice header and its full item list. The item
// list is declarative: the caller sends the desired end state and the
// service reconciles inventory and tasks against it.
type UpdateInput struct {
	CustomerID    int64        `json:"customer_id" validate:"required,gt=0"`
	VehicleID     *int64       `json:"vehicle_id" validate:"omitempty,gt=0"`
	Date          time.Time    `json:"date" validate:"required"`
	DueDate       *time.Time   `json:"due_date"`
	TaxRate       float64      `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountType  DiscountType `json:"discount_type" validate:"omitempty,oneof=none percentage fixed"`
	DiscountValue float64      `json:"discount_value" validate:"gte=0"`
	Notes         *string      `json:"notes"`
	Items         []ItemInput  `json:"items" validate:"dive"`
}

// ItemInput is one line of a create or update request.
type ItemInput struct {
	Type        ItemType `json:"type" validate:"required,oneof=part labor service"`
	Description string   `json:"description" validate:"required"`
	Quantity    float64  `json:"quantity" validate:"gt=0"`
	Price       float64  `json:"price" validate:"gte=0"`
	PartID      *int64   `json:"part_id" validate:"omitempty,gt=0"`
	TaskID      *int64   `json:"task_id" validate:"omitempty,gt=0"`
	CreatesPart bool     `json:"creates_inventory_part"`
	CreatesTask bool     `json:"creates_task"`
}

// PaymentInput records a payment against an invoice.
type PaymentInput struct {
	Amount float64       `json:"amount" validate:"required,gt=0"`
	Date   time.Time     `json:"date" validate:"required"`
	Method PaymentMethod `json:"method" validate:"required,oneof=cash card bank_transfer check"`
	Notes  *string       `json:"notes"`
}

// View is the API shape of an invoice: the stored record plus the derived
// money fields clients would otherwise recompute.
type View struct {
	Invoice
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	Tax            float64 `json:"tax"`
	Total          float64 `json:"total"`
	Paid           float64 `json:"paid_amount"`
	BalanceDue     float64 `json:"balance_due"`
}

// NewView derives the display totals for an invoice.
func NewView(inv Invoice) View {
	t := inv.Totals().Rounded()
	return View{
		Invoice:        inv,
		Subtotal:       t.Subtotal,
		DiscountAmount: t.DiscountAmount,
		Tax:            t.Tax,
		Total:          t.Total,
		Paid:           Round2(inv.PaidAmount()),
		BalanceDue:     Round2(inv.BalanceDue()),
	}
}

func (in ItemInput) toItem(invoiceID int64, sortOrder int) Item {
	return Item{
		InvoiceID:   invoiceID,
		Type:        in.Type,
		Description: in.Description,
		Quantity:    in.Quantity,
		Price:       in.Price,
		PartID:      in.PartID,
		TaskID:      in.TaskID,
		CreatesPart: in.CreatesPart,
		CreatesTask: in.CreatesTask,
		SortOrder:   sortOrder,
	}
}
