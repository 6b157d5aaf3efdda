package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	documentdomain "github.com/smallbiznis/kanakku/internal/document/domain"
	"gorm.io/gorm"
)

// Split is one mode of a payment.
type Split struct {
	PaymentMode string          `json:"payment_mode"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
}

// RecordRequest records one or more splits against an invoice. The
// splits together may not exceed the balance due.
type RecordRequest struct {
	InvoiceID string     `json:"-"`
	Splits    []Split    `json:"splits"`
	Date      *time.Time `json:"date"`
	Notes     string     `json:"notes"`
}

type RecordResponse struct {
	Payments []InvoicePayment        `json:"payments"`
	Invoice  documentdomain.Document `json:"invoice"`
}

type OutstandingRequest struct {
	CustomerID string
}

type OutstandingResponse struct {
	Invoices   []documentdomain.Document `json:"invoices"`
	TotalDue   decimal.Decimal           `json:"total_due"`
	TotalCount int                       `json:"total_count"`
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (*RecordResponse, error)
	// RecordTx records splits inside the caller's transaction. Billing uses
	// it for the amount received at the counter.
	RecordTx(ctx context.Context, tx *gorm.DB, req RecordRequest) (*RecordResponse, error)
	Delete(ctx context.Context, id string) (*documentdomain.Document, error)
	List(ctx context.Context, invoiceID string) ([]InvoicePayment, error)
	Outstanding(ctx context.Context, req OutstandingRequest) (*OutstandingResponse, error)
	Summary(ctx context.Context, from, to time.Time) (*Summary, error)
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrInvoiceCancelled   = errors.New("invoice_cancelled")
	ErrNoSplits           = errors.New("no_payment_splits")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidPaymentMode = errors.New("invalid_payment_mode")
	ErrOverpayment        = errors.New("overpayment")
	ErrInvalidDateRange   = errors.New("invalid_date_range")
)
