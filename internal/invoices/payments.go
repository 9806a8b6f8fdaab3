package invoices

import (
	"fmt"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

// ApplyPayment validates and appends a payment, then reconciles the invoice
// status. The invoice is mutated only on success: overpayment and locked
// statuses leave it untouched.
func ApplyPayment(inv *Invoice, payment Payment) error {
	if !inv.Status.Editable() {
		return fmt.Errorf("%w: status %s", shared.ErrInvoiceNotEditable, inv.Status)
	}
	if payment.Amount <= 0 {
		return fmt.Errorf("payment amount must be positive, got %.2f", payment.Amount)
	}
	if !payment.Method.Valid() {
		return fmt.Errorf("unknown payment method %q", payment.Method)
	}

	total := inv.Totals().Total
	if inv.PaidAmount()+payment.Amount > total+centsEpsilon {
		return fmt.Errorf("%w: %.2f against balance %.2f",
			shared.ErrAmountExceedsBalance, payment.Amount, inv.BalanceDue())
	}

	inv.Payments = append(inv.Payments, payment)
	reconcileStatus(inv)
	return nil
}

// RemovePayment drops the payment with the given id and reconciles status,
// handling the edge of removing a payment from a fully paid invoice.
func RemovePayment(inv *Invoice, paymentID int64) error {
	if inv.Status == StatusCancelled {
		return fmt.Errorf("%w: status %s", shared.ErrInvoiceNotEditable, inv.Status)
	}
	idx := -1
	for i, p := range inv.Payments {
		if p.ID == paymentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("payment %d: %w", paymentID, shared.ErrNotFound)
	}
	inv.Payments = append(inv.Payments[:idx], inv.Payments[idx+1:]...)
	reconcileStatus(inv)
	return nil
}

// reconcileStatus derives status from the paid amount. Overdue is reapplied
// by the scheduled sweep, not here: removing a payment reverts to open.
func reconcileStatus(inv *Invoice) {
	paid := inv.PaidAmount()
	total := inv.Totals().Total
	switch {
	case paid >= total-centsEpsilon && total > 0:
		inv.Status = StatusPaid
	case paid > 0:
		inv.Status = StatusPartiallyPaid
	default:
		inv.Status = StatusOpen
	}
}

// centsEpsilon absorbs float drift when comparing sums of payments against
// the computed total.
const centsEpsilon = 1e-6
