package pdf

import (
	"context"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

// Party is a seller or buyer block printed on the document.
type Party struct {
	Name      string
	Address   string
	GSTIN     string
	StateCode string
	StateName string
	Phone     string
	Email     string
}

type Line struct {
	Name         string
	HSNCode      string
	Quantity     decimal.Decimal
	Unit         string
	UnitRate     decimal.Decimal
	GSTRate      decimal.Decimal
	TaxableValue decimal.Decimal
	CGSTAmount   decimal.Decimal
	SGSTAmount   decimal.Decimal
	IGSTAmount   decimal.Decimal
	LineTotal    decimal.Decimal
}

type BankDetails struct {
	BankName string
	Account  string
	IFSC     string
	Branch   string
	UPIID    string
}

// DocumentData is everything needed to print one GST document.
type DocumentData struct {
	Title          string
	Number         string
	Date           string
	ValidUntil     string
	OriginalNumber string
	Reason         string
	PaymentMode    string
	PlaceOfSupply  string
	IsInterState   bool

	Seller Party
	Buyer  Party
	Bank   BankDetails

	Lines      []Line
	Subtotal   decimal.Decimal
	CGSTTotal  decimal.Decimal
	SGSTTotal  decimal.Decimal
	IGSTTotal  decimal.Decimal
	Discount   decimal.Decimal
	GrandTotal decimal.Decimal
	Notes      string
}

type Provider interface {
	RenderDocument(ctx context.Context, data DocumentData) ([]byte, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) RenderDocument(ctx context.Context, data DocumentData) ([]byte, error) {
	return nil, nil
}

// Filename turns a document number such as INV/2024-25/0001 into a safe
// attachment name.
func Filename(number string) string {
	name := slug.Make(strings.ReplaceAll(number, "/", "-"))
	if name == "" {
		name = "document"
	}
	return name + ".pdf"
}
