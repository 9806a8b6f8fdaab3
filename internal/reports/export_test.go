package reports

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSummaryCSV(t *testing.T) {
	summary := &Summary{
		Revenue:      1500.5,
		Expenses:     400,
		Net:          1100.5,
		Outstanding:  320.25,
		InvoiceCount: 12,
		OverdueCount: 2,
		AvgInvoice:   125.04,
		ExpensesByCat: map[string]float64{
			"parts": 250,
			"rent":  150,
		},
		PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, summary))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Value"}, records[0])
	assert.Contains(t, records, []string{"Revenue", "1500.50"})
	assert.Contains(t, records, []string{"Invoices Issued", "12"})
	// categories are sorted for stable output
	assert.Contains(t, records, []string{"Expenses: parts", "250.00"})
	assert.Contains(t, records, []string{"Expenses: rent", "150.00"})
}

func TestWriteMonthlyCSV(t *testing.T) {
	points := []MonthlyPoint{
		{Period: "2024-01", Revenue: 100, Expenses: 40, Net: 60},
		{Period: "2024-02", Revenue: 200, Expenses: 50, Net: 150},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMonthlyCSV(&buf, points))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Period", "Revenue", "Expenses", "Net"}, records[0])
	assert.Equal(t, []string{"2024-01", "100.00", "40.00", "60.00"}, records[1])
	assert.Equal(t, []string{"2024-02", "200.00", "50.00", "150.00"}, records[2])
}
