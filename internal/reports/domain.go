package reports

import "time"

// Summary is the headline dashboard block for one period.
type Summary struct {
	Revenue       float64            `json:"revenue"`
	Expenses      float64            `json:"expenses"`
	Net           float64            `json:"net"`
	Outstanding   float64            `json:"outstanding"`
	InvoiceCount  int64              `json:"invoice_count"`
	OverdueCount  int64              `json:"overdue_count"`
	AvgInvoice    float64            `json:"avg_invoice"`
	PaymentsTotal float64            `json:"payments_total"`
	ExpensesByCat map[string]float64 `json:"expenses_by_category"`
	PeriodStart   time.Time          `json:"period_start"`
	PeriodEnd     time.Time          `json:"period_end"`
}

// MonthlyPoint conveys one month of revenue and expense movement.
// Period is formatted YYYY-MM.
type MonthlyPoint struct {
	Period   string  `json:"period"`
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

// Range bounds a reporting query. Zero values fall back to the trailing
// twelve months.
type Range struct {
	From time.Time
	To   time.Time
}
