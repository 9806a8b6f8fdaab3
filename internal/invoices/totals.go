package invoices

import "math"

// Totals is the financial summary of an invoice.
type Totals struct {
	Subtotal              float64 `json:"subtotal"`
	DiscountAmount        float64 `json:"discount_amount"`
	SubtotalAfterDiscount float64 `json:"subtotal_after_discount"`
	Tax                   float64 `json:"tax"`
	Total                 float64 `json:"total"`
}

// ComputeTotals derives the invoice summary from its items. Percentage and
// fixed discounts are clamped to [0, subtotal] so the discounted subtotal can
// never go negative. Intermediate values stay unrounded; rounding happens only
// at the display and persistence edges via Round2.
func ComputeTotals(items []Item, discountType DiscountType, discountValue, taxRate float64) Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += item.Quantity * item.Price
	}

	var discount float64
	switch discountType {
	case DiscountPercentage:
		discount = subtotal * (discountValue / 100)
	case DiscountFixed:
		discount = discountValue
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}

	afterDiscount := subtotal - discount
	tax := afterDiscount * (taxRate / 100)

	return Totals{
		Subtotal:              subtotal,
		DiscountAmount:        discount,
		SubtotalAfterDiscount: afterDiscount,
		Tax:                   tax,
		Total:                 afterDiscount + tax,
	}
}

// Round2 rounds a monetary value to two decimal places. Apply at the edges
// only; rounding intermediates compounds errors across multi-item invoices.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rounded returns a copy with every field rounded for persistence/display.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:              Round2(t.Subtotal),
		DiscountAmount:        Round2(t.DiscountAmount),
		SubtotalAfterDiscount: Round2(t.SubtotalAfterDiscount),
		Tax:                   Round2(t.Tax),
		Total:                 Round2(t.Total),
	}
}
