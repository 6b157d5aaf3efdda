package service

import (
	"testing"

	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(qty, rate, gst string) taxdomain.LineItem {
	return taxdomain.LineItem{
		Name:     "Widget",
		HSNCode:  "8471",
		Quantity: d(qty),
		Unit:     "NOS",
		UnitRate: d(rate),
		GSTRate:  d(gst),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "expected %s, got %s", want, got)
}

func TestComputeLineIntraState(t *testing.T) {
	line, err := NewEngine().ComputeLine(item("2", "500", "18"), "32", "32")
	require.NoError(t, err)

	assertDecimal(t, "1000", line.TaxableValue)
	assertDecimal(t, "9", line.CGSTRate)
	assertDecimal(t, "9", line.SGSTRate)
	assertDecimal(t, "90", line.CGSTAmount)
	assertDecimal(t, "90", line.SGSTAmount)
	assertDecimal(t, "0", line.IGSTAmount)
	assertDecimal(t, "1180", line.LineTotal)
}

func TestComputeLineInterState(t *testing.T) {
	line, err := NewEngine().ComputeLine(item("2", "500", "18"), "32", "29")
	require.NoError(t, err)

	assertDecimal(t, "18", line.IGSTRate)
	assertDecimal(t, "180", line.IGSTAmount)
	assertDecimal(t, "0", line.CGSTAmount)
	assertDecimal(t, "0", line.SGSTAmount)
	assertDecimal(t, "1180", line.LineTotal)
}

func TestComputeLineMissingBuyerStateIsIntraState(t *testing.T) {
	line, err := NewEngine().ComputeLine(item("1", "100", "12"), "32", "  ")
	require.NoError(t, err)

	assertDecimal(t, "6", line.CGSTAmount)
	assertDecimal(t, "6", line.SGSTAmount)
	assertDecimal(t, "0", line.IGSTAmount)
}

func TestComputeLineAllRates(t *testing.T) {
	eng := NewEngine()
	for _, opt := range taxdomain.RateOptions() {
		rate := decimal.NewFromInt(opt.Value)
		intra, err := eng.ComputeLine(item("3", "33.33", rate.String()), "32", "32")
		require.NoError(t, err)
		inter, err := eng.ComputeLine(item("3", "33.33", rate.String()), "32", "07")
		require.NoError(t, err)

		taxable := d("99.99")
		assertDecimal(t, taxable.String(), intra.TaxableValue)

		half := taxable.Mul(rate.Div(two)).Div(hundred).Round(2)
		assertDecimal(t, half.String(), intra.CGSTAmount)
		assertDecimal(t, half.String(), intra.SGSTAmount)
		assertDecimal(t, taxable.Add(half).Add(half).Round(2).String(), intra.LineTotal)

		full := taxable.Mul(rate).Div(hundred).Round(2)
		assertDecimal(t, full.String(), inter.IGSTAmount)
		assertDecimal(t, taxable.Add(full).Round(2).String(), inter.LineTotal)
	}
}

func TestComputeLineRoundsHalfUp(t *testing.T) {
	// 0.1 * 0.05 = 0.005 -> 0.01
	line, err := NewEngine().ComputeLine(item("1", "0.10", "5"), "32", "07")
	require.NoError(t, err)
	assertDecimal(t, "0.01", line.IGSTAmount)
}

func TestComputeLineRejectsInvalidInput(t *testing.T) {
	eng := NewEngine()

	_, err := eng.ComputeLine(item("-1", "10", "5"), "32", "32")
	assert.ErrorIs(t, err, taxdomain.ErrInvalidInput)

	_, err = eng.ComputeLine(item("1", "-10", "5"), "32", "32")
	assert.ErrorIs(t, err, taxdomain.ErrInvalidInput)

	_, err = eng.ComputeLine(item("1", "10", "15"), "32", "32")
	assert.ErrorIs(t, err, taxdomain.ErrInvalidInput)
}

func TestComputeCartSumsRoundedLineAmounts(t *testing.T) {
	// Each line: 0.33 taxable at 5% -> 0.00825 per half -> 0.01 each.
	// Summing unrounded halves first would give 0.02475 -> 0.02.
	items := []taxdomain.LineItem{
		item("1", "0.33", "5"),
		item("1", "0.33", "5"),
		item("1", "0.33", "5"),
	}
	totals, err := NewEngine().ComputeCart(items, "32", "32", decimal.Zero)
	require.NoError(t, err)

	assertDecimal(t, "0.99", totals.Subtotal)
	assertDecimal(t, "0.03", totals.CGSTTotal)
	assertDecimal(t, "0.03", totals.SGSTTotal)
	assertDecimal(t, "0.06", totals.TotalTax)
	assertDecimal(t, "1.05", totals.GrandTotal)
}

func TestComputeCartGrandTotalIdentity(t *testing.T) {
	items := []taxdomain.LineItem{
		item("2", "500", "18"),
		item("1.5", "99.99", "12"),
		item("4", "12.5", "0"),
	}
	totals, err := NewEngine().ComputeCart(items, "32", "29", d("50"))
	require.NoError(t, err)

	require.Len(t, totals.Lines, 3)
	assert.Equal(t, "Widget", totals.Lines[0].Name)
	assert.True(t, totals.IsInterState)

	sumTaxable := decimal.Zero
	sumTax := decimal.Zero
	for _, l := range totals.Lines {
		sumTaxable = sumTaxable.Add(l.TaxableValue)
		sumTax = sumTax.Add(l.CGSTAmount).Add(l.SGSTAmount).Add(l.IGSTAmount)
	}
	assertDecimal(t, sumTaxable.String(), totals.Subtotal)
	assertDecimal(t, sumTax.String(), totals.TotalTax)
	assertDecimal(t, totals.Subtotal.Add(totals.TotalTax).Sub(d("50")).Round(2).String(), totals.GrandTotal)
	assertDecimal(t, "0", totals.CGSTTotal)
}

func TestComputeCartRejectsNegativeDiscount(t *testing.T) {
	_, err := NewEngine().ComputeCart([]taxdomain.LineItem{item("1", "10", "5")}, "32", "32", d("-1"))
	assert.ErrorIs(t, err, taxdomain.ErrInvalidInput)
}

func TestComputeCartEmpty(t *testing.T) {
	totals, err := NewEngine().ComputeCart(nil, "32", "", decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, totals.Lines)
	assertDecimal(t, "0", totals.GrandTotal)
	assert.False(t, totals.IsInterState)
}

func TestSummarizeByRate(t *testing.T) {
	eng := NewEngine()
	totals, err := eng.ComputeCart([]taxdomain.LineItem{
		item("1", "100", "18"),
		item("1", "200", "5"),
		item("1", "300", "18.00"),
	}, "32", "32", decimal.Zero)
	require.NoError(t, err)

	summary := eng.SummarizeByRate(totals.Lines)
	require.Len(t, summary, 2)
	assertDecimal(t, "5", summary[0].GSTRate)
	assertDecimal(t, "200", summary[0].TaxableValue)
	assertDecimal(t, "18", summary[1].GSTRate)
	assertDecimal(t, "400", summary[1].TaxableValue)
	assertDecimal(t, "36", summary[1].CGST)
	assertDecimal(t, "72", summary[1].TotalTax())
}
