package domain

import "github.com/shopspring/decimal"

// Engine computes GST for line items and carts. Implementations are pure:
// the seller and buyer state codes are passed on every call.
type Engine interface {
	ComputeLine(item LineItem, sellerStateCode, buyerStateCode string) (TaxedLine, error)
	ComputeCart(items []LineItem, sellerStateCode, buyerStateCode string, discount decimal.Decimal) (CartTotals, error)
	SummarizeByRate(lines []TaxedLine) []RateSummary
}
