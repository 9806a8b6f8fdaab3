package reports

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
)

// WriteSummaryCSV serialises the headline metrics to CSV.
func WriteSummaryCSV(w io.Writer, summary *Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"Period Start", summary.PeriodStart.Format("2006-01-02")},
		{"Period End", summary.PeriodEnd.Format("2006-01-02")},
		{"Revenue", formatFloat(summary.Revenue)},
		{"Expenses", formatFloat(summary.Expenses)},
		{"Net", formatFloat(summary.Net)},
		{"Outstanding", formatFloat(summary.Outstanding)},
		{"Invoices Issued", strconv.FormatInt(summary.InvoiceCount, 10)},
		{"Invoices Overdue", strconv.FormatInt(summary.OverdueCount, 10)},
		{"Average Invoice", formatFloat(summary.AvgInvoice)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	categories := make([]string, 0, len(summary.ExpensesByCat))
	for category := range summary.ExpensesByCat {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		if err := writer.Write([]string{"Expenses: " + category, formatFloat(summary.ExpensesByCat[category])}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteMonthlyCSV emits the monthly movement as CSV.
func WriteMonthlyCSV(w io.Writer, points []MonthlyPoint) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Period", "Revenue", "Expenses", "Net"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			point.Period,
			formatFloat(point.Revenue),
			formatFloat(point.Expenses),
			formatFloat(point.Net),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
