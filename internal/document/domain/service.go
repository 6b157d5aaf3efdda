package domain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
)

// Buyer selects a stored customer by ID or describes a walk-in buyer.
type Buyer struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	GSTIN      string `json:"gstin"`
	StateCode  string `json:"state_code"`
	Address    string `json:"address"`
	Email      string `json:"email"`
}

type CreateInvoiceRequest struct {
	Buyer       Buyer                `json:"buyer"`
	Items       []taxdomain.LineItem `json:"items"`
	Discount    decimal.Decimal      `json:"discount"`
	PaymentMode string               `json:"payment_mode"`
	// AmountPaid is the money taken at the counter. It defaults to the
	// grand total, or zero when PaymentMode is CREDIT.
	AmountPaid *decimal.Decimal `json:"amount_paid"`
	Notes      string           `json:"notes"`
	Date       *time.Time       `json:"date"`
	// SendEmail queues the invoice email even when auto email is off.
	SendEmail bool   `json:"send_email"`
	EmailTo   string `json:"email_to"`
}

type CreateQuotationRequest struct {
	Buyer        Buyer                `json:"buyer"`
	Items        []taxdomain.LineItem `json:"items"`
	Discount     decimal.Decimal      `json:"discount"`
	Notes        string               `json:"notes"`
	Date         *time.Time           `json:"date"`
	ValidityDays int                  `json:"validity_days"`
	Status       Status               `json:"status"`
}

// ReturnItem selects a line of the original invoice by its 1-based number.
type ReturnItem struct {
	Line     int             `json:"line"`
	Quantity decimal.Decimal `json:"quantity"`
}

type CreateCreditNoteRequest struct {
	OriginalInvoiceID string       `json:"original_invoice_id"`
	Items             []ReturnItem `json:"items"`
	Reason            string       `json:"reason"`
	ReasonDetails     string       `json:"reason_details"`
	Date              *time.Time   `json:"date"`
	// RestoreStock puts returned catalog items back in stock. It defaults
	// to true for RETURN and false for other reasons.
	RestoreStock *bool `json:"restore_stock"`
}

type CreateDebitNoteRequest struct {
	OriginalInvoiceID string               `json:"original_invoice_id"`
	Items             []taxdomain.LineItem `json:"items"`
	Reason            string               `json:"reason"`
	ReasonDetails     string               `json:"reason_details"`
	Date              *time.Time           `json:"date"`
}

type ConvertQuotationRequest struct {
	ID          string           `json:"-"`
	PaymentMode string           `json:"payment_mode"`
	AmountPaid  *decimal.Decimal `json:"amount_paid"`
	Date        *time.Time       `json:"date"`
	SendEmail   bool             `json:"send_email"`
}

type ListRequest struct {
	Kind       string
	Status     string
	CustomerID string
	From       *time.Time
	To         *time.Time
	PageToken  string
	PageSize   int
}

type ListResponse struct {
	pagination.PageInfo
	Documents []Document `json:"documents"`
}

type EmailRequest struct {
	ID        string `json:"-"`
	Recipient string `json:"recipient"`
}

// RenderedPDF is a document PDF ready for download or attachment.
type RenderedPDF struct {
	Filename string
	Content  []byte
}

type Service interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Document, error)
	CreateQuotation(ctx context.Context, req CreateQuotationRequest) (*Document, error)
	CreateCreditNote(ctx context.Context, req CreateCreditNoteRequest) (*Document, error)
	CreateDebitNote(ctx context.Context, req CreateDebitNoteRequest) (*Document, error)

	CancelInvoice(ctx context.Context, id string) (*Document, error)
	UpdateQuotationStatus(ctx context.Context, id string, status Status) (*Document, error)
	ConvertQuotation(ctx context.Context, req ConvertQuotationRequest) (*Document, error)
	ExpireQuotations(ctx context.Context) (int64, error)

	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GSTSummary(ctx context.Context, from, to time.Time) (*GSTSummary, error)

	RenderPDF(ctx context.Context, id string) (*RenderedPDF, error)
	EmailDocument(ctx context.Context, req EmailRequest) (*emailqueuedomain.EmailJob, error)
}

// KindFromString parses a series kind, accepting lower case.
func KindFromString(value string) (sequencedomain.SeriesKind, bool) {
	kind := sequencedomain.SeriesKind(strings.ToUpper(strings.TrimSpace(value)))
	return kind, kind.Valid()
}
