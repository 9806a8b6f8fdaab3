package invoices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotalsNoDiscount(t *testing.T) {
	items := []Item{{Quantity: 2, Price: 50}}
	totals := ComputeTotals(items, DiscountNone, 0, 8)

	assert.InDelta(t, 100.0, totals.Subtotal, 1e-9)
	assert.InDelta(t, 0.0, totals.DiscountAmount, 1e-9)
	assert.InDelta(t, 8.0, totals.Tax, 1e-9)
	assert.InDelta(t, 108.0, totals.Total, 1e-9)
}

func TestComputeTotalsPercentageDiscount(t *testing.T) {
	items := []Item{{Quantity: 1, Price: 200}}
	totals := ComputeTotals(items, DiscountPercentage, 10, 5)

	assert.InDelta(t, 200.0, totals.Subtotal, 1e-9)
	assert.InDelta(t, 20.0, totals.DiscountAmount, 1e-9)
	assert.InDelta(t, 9.0, totals.Tax, 1e-9)
	assert.InDelta(t, 189.0, totals.Total, 1e-9)
}

func TestComputeTotalsFixedDiscountClamped(t *testing.T) {
	items := []Item{{Quantity: 1, Price: 30}}

	totals := ComputeTotals(items, DiscountFixed, 50, 10)
	assert.InDelta(t, 30.0, totals.DiscountAmount, 1e-9, "discount clamps to subtotal")
	assert.InDelta(t, 0.0, totals.Tax, 1e-9)
	assert.InDelta(t, 0.0, totals.Total, 1e-9)

	totals = ComputeTotals(items, DiscountFixed, -5, 10)
	assert.InDelta(t, 0.0, totals.DiscountAmount, 1e-9, "negative discount clamps to zero")
}

func TestComputeTotalsPercentClampedTo100(t *testing.T) {
	items := []Item{{Quantity: 4, Price: 25}}
	totals := ComputeTotals(items, DiscountPercentage, 150, 20)
	assert.InDelta(t, 100.0, totals.DiscountAmount, 1e-9)
	assert.InDelta(t, 0.0, totals.Total, 1e-9)
}

func TestComputeTotalsEmptyItems(t *testing.T) {
	totals := ComputeTotals(nil, DiscountPercentage, 10, 8)
	assert.Zero(t, totals.Subtotal)
	assert.Zero(t, totals.Total)
}

func TestRound2(t *testing.T) {
	assert.InDelta(t, 0.1, Round2(0.1+0.2-0.2), 1e-12)
	assert.InDelta(t, 2.68, Round2(2.675000001), 1e-12)
	assert.InDelta(t, -1.23, Round2(-1.234), 1e-12)
}

func TestTotalsRoundedOnlyAtEdge(t *testing.T) {
	// three items at a third of a cent each: intermediate math keeps the
	// drift, Rounded collapses it for display
	items := []Item{
		{Quantity: 1, Price: 10.333333},
		{Quantity: 1, Price: 10.333333},
		{Quantity: 1, Price: 10.333334},
	}
	totals := ComputeTotals(items, DiscountNone, 0, 0)
	require.InDelta(t, 31.0, totals.Subtotal, 1e-6)
	assert.InDelta(t, 31.0, totals.Rounded().Total, 1e-12)
}

func TestBalanceDueFlooredAtZero(t *testing.T) {
	inv := Invoice{
		Items:    []Item{{Quantity: 1, Price: 100}},
		Payments: []Payment{{Amount: 100.005}},
	}
	assert.GreaterOrEqual(t, inv.BalanceDue(), 0.0)
}
