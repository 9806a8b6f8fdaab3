package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAmountExceedsBalance indicates a payment would overpay an invoice.
	ErrAmountExceedsBalance = errors.New("payment amount exceeds balance due")
	// ErrInsufficientStock indicates a part assignment exceeds on-hand quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvoiceNotEditable indicates the invoice status locks further edits.
	ErrInvoiceNotEditable = errors.New("invoice is not editable")
)
