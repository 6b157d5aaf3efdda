package service

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

type engine struct{}

// NewEngine returns the GST engine. It keeps no state.
func NewEngine() taxdomain.Engine {
	return engine{}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsInterState reports whether IGST applies. An unknown buyer state is
// treated as intra-state.
func IsInterState(sellerStateCode, buyerStateCode string) bool {
	buyer := strings.TrimSpace(buyerStateCode)
	return buyer != "" && buyer != strings.TrimSpace(sellerStateCode)
}

func (engine) ComputeLine(item taxdomain.LineItem, sellerStateCode, buyerStateCode string) (taxdomain.TaxedLine, error) {
	if item.Quantity.IsNegative() || item.UnitRate.IsNegative() || item.GSTRate.IsNegative() {
		return taxdomain.TaxedLine{}, taxdomain.ErrInvalidInput
	}
	if !taxdomain.IsAllowedRate(item.GSTRate) {
		return taxdomain.TaxedLine{}, taxdomain.ErrInvalidInput
	}

	line := taxdomain.TaxedLine{
		LineItem:     item,
		TaxableValue: round2(item.Quantity.Mul(item.UnitRate)),
		CGSTRate:     decimal.Zero,
		CGSTAmount:   decimal.Zero,
		SGSTRate:     decimal.Zero,
		SGSTAmount:   decimal.Zero,
		IGSTRate:     decimal.Zero,
		IGSTAmount:   decimal.Zero,
	}

	if IsInterState(sellerStateCode, buyerStateCode) {
		line.IGSTRate = item.GSTRate
		line.IGSTAmount = round2(line.TaxableValue.Mul(line.IGSTRate).Div(hundred))
	} else {
		half := item.GSTRate.Div(two)
		line.CGSTRate = half
		line.SGSTRate = half
		// Each half is rounded on its own; odd paise do not get split.
		line.CGSTAmount = round2(line.TaxableValue.Mul(half).Div(hundred))
		line.SGSTAmount = round2(line.TaxableValue.Mul(half).Div(hundred))
	}

	line.TotalTax = line.CGSTAmount.Add(line.SGSTAmount).Add(line.IGSTAmount)
	line.LineTotal = round2(line.TaxableValue.Add(line.TotalTax))
	return line, nil
}

func (e engine) ComputeCart(items []taxdomain.LineItem, sellerStateCode, buyerStateCode string, discount decimal.Decimal) (taxdomain.CartTotals, error) {
	if discount.IsNegative() {
		return taxdomain.CartTotals{}, taxdomain.ErrInvalidInput
	}

	totals := taxdomain.CartTotals{
		Lines:        make([]taxdomain.TaxedLine, 0, len(items)),
		Subtotal:     decimal.Zero,
		CGSTTotal:    decimal.Zero,
		SGSTTotal:    decimal.Zero,
		IGSTTotal:    decimal.Zero,
		Discount:     round2(discount),
		IsInterState: IsInterState(sellerStateCode, buyerStateCode),
	}

	for _, item := range items {
		line, err := e.ComputeLine(item, sellerStateCode, buyerStateCode)
		if err != nil {
			return taxdomain.CartTotals{}, err
		}
		totals.Lines = append(totals.Lines, line)
		totals.Subtotal = totals.Subtotal.Add(line.TaxableValue)
		totals.CGSTTotal = totals.CGSTTotal.Add(line.CGSTAmount)
		totals.SGSTTotal = totals.SGSTTotal.Add(line.SGSTAmount)
		totals.IGSTTotal = totals.IGSTTotal.Add(line.IGSTAmount)
	}

	totals.TotalTax = totals.CGSTTotal.Add(totals.SGSTTotal).Add(totals.IGSTTotal)
	totals.GrandTotal = round2(totals.Subtotal.Add(totals.TotalTax).Sub(totals.Discount))
	return totals, nil
}

func (engine) SummarizeByRate(lines []taxdomain.TaxedLine) []taxdomain.RateSummary {
	buckets := make(map[string]*taxdomain.RateSummary)
	for _, line := range lines {
		key := line.GSTRate.String()
		bucket, ok := buckets[key]
		if !ok {
			bucket = &taxdomain.RateSummary{
				GSTRate:      line.GSTRate,
				TaxableValue: decimal.Zero,
				CGST:         decimal.Zero,
				SGST:         decimal.Zero,
				IGST:         decimal.Zero,
			}
			buckets[key] = bucket
		}
		bucket.TaxableValue = bucket.TaxableValue.Add(line.TaxableValue)
		bucket.CGST = bucket.CGST.Add(line.CGSTAmount)
		bucket.SGST = bucket.SGST.Add(line.SGSTAmount)
		bucket.IGST = bucket.IGST.Add(line.IGSTAmount)
	}

	out := make([]taxdomain.RateSummary, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GSTRate.LessThan(out[j].GSTRate) })
	return out
}
