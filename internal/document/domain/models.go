// Package domain contains persistence models for GST documents.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
)

// Status is shared by every document kind; each kind uses its own subset.
type Status string

const (
	// Invoices.
	StatusIssued    Status = "ISSUED"
	StatusCancelled Status = "CANCELLED"

	// Quotations.
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusExpired   Status = "EXPIRED"
	StatusConverted Status = "CONVERTED"

	// Credit and debit notes.
	StatusActive Status = "ACTIVE"
)

// Reason codes for credit and debit notes.
const (
	ReasonReturn            = "RETURN"
	ReasonDamage            = "DAMAGE"
	ReasonPriceAdjustment   = "PRICE_ADJUSTMENT"
	ReasonPriceIncrease     = "PRICE_INCREASE"
	ReasonAdditionalCharges = "ADDITIONAL_CHARGES"
	ReasonTaxCorrection     = "TAX_CORRECTION"
	ReasonOther             = "OTHER"
)

var (
	CreditNoteReasons = []string{ReasonReturn, ReasonDamage, ReasonPriceAdjustment, ReasonOther}
	DebitNoteReasons  = []string{ReasonPriceIncrease, ReasonAdditionalCharges, ReasonTaxCorrection, ReasonOther}
)

// NormalizeReason maps unknown reasons to OTHER.
func NormalizeReason(reason string, allowed []string) string {
	for _, r := range allowed {
		if r == reason {
			return r
		}
	}
	return ReasonOther
}

const (
	WalkInCustomerName   = "Walk-in Customer"
	DefaultQuotationDays = 30
	DefaultPaymentMode   = "CASH"
)

var PaymentModes = []string{"CASH", "UPI", "CARD", "BANK_TRANSFER", "CHEQUE", "CREDIT"}

// PaymentModeCredit bills on account; the invoice opens unpaid.
const PaymentModeCredit = "CREDIT"

// PaymentStatus tracks how much of an invoice has been settled.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "PAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentUnpaid  PaymentStatus = "UNPAID"
)

// Document is an invoice, quotation, credit note or debit note. Buyer and
// seller details are copied in at issue time so later edits to the
// customer or company never change a printed document.
type Document struct {
	ID     snowflake.ID              `gorm:"primaryKey" json:"id"`
	Kind   sequencedomain.SeriesKind `gorm:"type:varchar(32);not null;uniqueIndex:ux_documents_number,priority:1;index:ix_documents_kind_date,priority:1" json:"kind"`
	Number string                    `gorm:"type:varchar(64);not null;uniqueIndex:ux_documents_number,priority:2" json:"number"`
	Date   time.Time                 `gorm:"column:document_date;not null;index:ix_documents_kind_date,priority:2" json:"date"`
	Status Status                    `gorm:"type:varchar(16);not null;index" json:"status"`

	CustomerID     *snowflake.ID `gorm:"index" json:"customer_id,omitempty"`
	BuyerName      string        `gorm:"type:varchar(200);not null" json:"buyer_name"`
	BuyerGSTIN     string        `gorm:"column:buyer_gstin;type:varchar(15)" json:"buyer_gstin,omitempty"`
	BuyerStateCode string        `gorm:"type:varchar(2)" json:"buyer_state_code,omitempty"`
	BuyerAddress   string        `gorm:"type:text" json:"buyer_address,omitempty"`
	BuyerEmail     string        `gorm:"type:varchar(255)" json:"buyer_email,omitempty"`

	SellerStateCode string `gorm:"type:varchar(2);not null" json:"seller_state_code"`
	IsInterState    bool   `gorm:"not null" json:"is_inter_state"`

	Subtotal   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	CGSTTotal  decimal.Decimal `gorm:"column:cgst_total;type:decimal(14,2);not null" json:"cgst_total"`
	SGSTTotal  decimal.Decimal `gorm:"column:sgst_total;type:decimal(14,2);not null" json:"sgst_total"`
	IGSTTotal  decimal.Decimal `gorm:"column:igst_total;type:decimal(14,2);not null" json:"igst_total"`
	TotalTax   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_tax"`
	Discount   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"discount"`
	GrandTotal decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"grand_total"`

	PaymentMode string `gorm:"type:varchar(20)" json:"payment_mode,omitempty"`
	Notes       string `gorm:"type:text" json:"notes,omitempty"`

	// Invoices. CreditedAmount is the total of credit notes issued against
	// the invoice and settles the balance like a payment.
	AmountPaid     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"amount_paid"`
	CreditedAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"credited_amount"`
	BalanceDue     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"balance_due"`
	PaymentStatus  PaymentStatus   `gorm:"type:varchar(16);index" json:"payment_status,omitempty"`

	// Quotations.
	ValidUntil         *time.Time    `json:"valid_until,omitempty"`
	ConvertedInvoiceID *snowflake.ID `json:"converted_invoice_id,omitempty"`

	// Credit and debit notes.
	OriginalDocumentID *snowflake.ID `gorm:"index" json:"original_document_id,omitempty"`
	OriginalNumber     string        `gorm:"type:varchar(64)" json:"original_number,omitempty"`
	Reason             string        `gorm:"type:varchar(32)" json:"reason,omitempty"`
	ReasonDetails      string        `gorm:"type:text" json:"reason_details,omitempty"`

	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`

	Items []DocumentItem `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Document) TableName() string { return "documents" }

// Settle recomputes BalanceDue and PaymentStatus from GrandTotal,
// AmountPaid and CreditedAmount. The balance never goes below zero.
func (d *Document) Settle() {
	balance := d.GrandTotal.Sub(d.AmountPaid).Sub(d.CreditedAmount)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	d.BalanceDue = balance
	switch {
	case !balance.IsPositive():
		d.PaymentStatus = PaymentPaid
	case d.AmountPaid.IsPositive() || d.CreditedAmount.IsPositive():
		d.PaymentStatus = PaymentPartial
	default:
		d.PaymentStatus = PaymentUnpaid
	}
}

// DocumentItem stores one taxed line as computed at issue time.
type DocumentItem struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	DocumentID   snowflake.ID    `gorm:"not null;index" json:"-"`
	Line         int             `gorm:"not null" json:"line"`
	OriginalLine int             `json:"original_line,omitempty"`
	ProductRef   string          `gorm:"type:varchar(64)" json:"product_ref,omitempty"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	HSNCode      string          `gorm:"column:hsn_code;type:varchar(8)" json:"hsn_code,omitempty"`
	Quantity     decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"quantity"`
	Unit         string          `gorm:"type:varchar(8)" json:"unit"`
	UnitRate     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"unit_rate"`
	GSTRate      decimal.Decimal `gorm:"column:gst_rate;type:decimal(5,2);not null" json:"gst_rate"`
	TaxableValue decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"taxable_value"`
	CGSTRate     decimal.Decimal `gorm:"column:cgst_rate;type:decimal(5,2);not null" json:"cgst_rate"`
	CGSTAmount   decimal.Decimal `gorm:"column:cgst_amount;type:decimal(14,2);not null" json:"cgst_amount"`
	SGSTRate     decimal.Decimal `gorm:"column:sgst_rate;type:decimal(5,2);not null" json:"sgst_rate"`
	SGSTAmount   decimal.Decimal `gorm:"column:sgst_amount;type:decimal(14,2);not null" json:"sgst_amount"`
	IGSTRate     decimal.Decimal `gorm:"column:igst_rate;type:decimal(5,2);not null" json:"igst_rate"`
	IGSTAmount   decimal.Decimal `gorm:"column:igst_amount;type:decimal(14,2);not null" json:"igst_amount"`
	TotalTax     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_tax"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"line_total"`
	CreatedAt    time.Time       `gorm:"not null" json:"-"`
}

func (DocumentItem) TableName() string { return "document_items" }

// NewDocumentItem copies a computed line into its stored form.
func NewDocumentItem(id, documentID snowflake.ID, line int, taxed taxdomain.TaxedLine, now time.Time) DocumentItem {
	return DocumentItem{
		ID:           id,
		DocumentID:   documentID,
		Line:         line,
		ProductRef:   taxed.ProductRef,
		Name:         taxed.Name,
		HSNCode:      taxed.HSNCode,
		Quantity:     taxed.Quantity,
		Unit:         taxed.Unit,
		UnitRate:     taxed.UnitRate,
		GSTRate:      taxed.GSTRate,
		TaxableValue: taxed.TaxableValue,
		CGSTRate:     taxed.CGSTRate,
		CGSTAmount:   taxed.CGSTAmount,
		SGSTRate:     taxed.SGSTRate,
		SGSTAmount:   taxed.SGSTAmount,
		IGSTRate:     taxed.IGSTRate,
		IGSTAmount:   taxed.IGSTAmount,
		TotalTax:     taxed.TotalTax,
		LineTotal:    taxed.LineTotal,
		CreatedAt:    now,
	}
}

func (i DocumentItem) LineItem() taxdomain.LineItem {
	return taxdomain.LineItem{
		ProductRef: i.ProductRef,
		Name:       i.Name,
		HSNCode:    i.HSNCode,
		Quantity:   i.Quantity,
		Unit:       i.Unit,
		UnitRate:   i.UnitRate,
		GSTRate:    i.GSTRate,
	}
}

func (i DocumentItem) TaxedLine() taxdomain.TaxedLine {
	return taxdomain.TaxedLine{
		LineItem:     i.LineItem(),
		TaxableValue: i.TaxableValue,
		CGSTRate:     i.CGSTRate,
		CGSTAmount:   i.CGSTAmount,
		SGSTRate:     i.SGSTRate,
		SGSTAmount:   i.SGSTAmount,
		IGSTRate:     i.IGSTRate,
		IGSTAmount:   i.IGSTAmount,
		TotalTax:     i.TotalTax,
		LineTotal:    i.LineTotal,
	}
}

// Title is the printed heading for a document kind.
func Title(kind sequencedomain.SeriesKind) string {
	switch kind {
	case sequencedomain.SeriesInvoice:
		return "Tax Invoice"
	case sequencedomain.SeriesQuotation:
		return "Quotation"
	case sequencedomain.SeriesCreditNote:
		return "Credit Note"
	case sequencedomain.SeriesDebitNote:
		return "Debit Note"
	default:
		return "Document"
	}
}

// Label is the short name used in email subjects.
func Label(kind sequencedomain.SeriesKind) string {
	if kind == sequencedomain.SeriesInvoice {
		return "Invoice"
	}
	return Title(kind)
}

// GSTSummary aggregates issued invoices over a date range.
type GSTSummary struct {
	From         time.Time               `json:"from"`
	To           time.Time               `json:"to"`
	InvoiceCount int                     `json:"invoice_count"`
	Rates        []taxdomain.RateSummary `json:"rates"`
	TaxableValue decimal.Decimal         `json:"taxable_value"`
	CGST         decimal.Decimal         `json:"cgst"`
	SGST         decimal.Decimal         `json:"sgst"`
	IGST         decimal.Decimal         `json:"igst"`
	TotalTax     decimal.Decimal         `json:"total_tax"`
}
