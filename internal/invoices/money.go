package invoices

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MoneyFormatter renders amounts in an organization's configured currency.
// Construct once per organization; safe for concurrent use.
type MoneyFormatter struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewMoneyFormatter builds a formatter for the ISO 4217 code, falling back to
// USD when the code is unknown.
func NewMoneyFormatter(code string) *MoneyFormatter {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	return &MoneyFormatter{
		unit:    unit,
		printer: message.NewPrinter(language.English),
	}
}

// Format renders the amount with the currency symbol, rounded to two decimal
// places. Rounding at the display edge only; see Round2.
func (f *MoneyFormatter) Format(amount float64) string {
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(Round2(amount))))
}

// Code returns the ISO currency code in use.
func (f *MoneyFormatter) Code() string {
	return f.unit.String()
}
