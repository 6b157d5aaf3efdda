package domain

import "github.com/shopspring/decimal"

// LineItem is a single cart entry priced exclusive of tax.
type LineItem struct {
	ProductRef string          `json:"product_ref,omitempty"`
	Name       string          `json:"name"`
	HSNCode    string          `json:"hsn_code,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
	UnitRate   decimal.Decimal `json:"unit_rate"`
	GSTRate    decimal.Decimal `json:"gst_rate"`
}

// TaxedLine is a LineItem with its GST breakdown. Either the CGST+SGST
// pair or IGST is non-zero, never both.
type TaxedLine struct {
	LineItem

	TaxableValue decimal.Decimal `json:"taxable_value"`
	CGSTRate     decimal.Decimal `json:"cgst_rate"`
	CGSTAmount   decimal.Decimal `json:"cgst_amount"`
	SGSTRate     decimal.Decimal `json:"sgst_rate"`
	SGSTAmount   decimal.Decimal `json:"sgst_amount"`
	IGSTRate     decimal.Decimal `json:"igst_rate"`
	IGSTAmount   decimal.Decimal `json:"igst_amount"`
	TotalTax     decimal.Decimal `json:"total_tax"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// CartTotals holds document totals. Every column total is the plain sum of
// the rounded per-line amounts.
type CartTotals struct {
	Lines        []TaxedLine     `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	CGSTTotal    decimal.Decimal `json:"cgst_total"`
	SGSTTotal    decimal.Decimal `json:"sgst_total"`
	IGSTTotal    decimal.Decimal `json:"igst_total"`
	TotalTax     decimal.Decimal `json:"total_tax"`
	Discount     decimal.Decimal `json:"discount"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	IsInterState bool            `json:"is_inter_state"`
}

type RateSummary struct {
	GSTRate      decimal.Decimal `json:"gst_rate"`
	TaxableValue decimal.Decimal `json:"taxable_value"`
	CGST         decimal.Decimal `json:"cgst"`
	SGST         decimal.Decimal `json:"sgst"`
	IGST         decimal.Decimal `json:"igst"`
}

// TotalTax is the combined tax for the rate bucket.
func (r RateSummary) TotalTax() decimal.Decimal {
	return r.CGST.Add(r.SGST).Add(r.IGST)
}
