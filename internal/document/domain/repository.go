package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Kind       sequencedomain.SeriesKind
	Status     Status
	CustomerID *snowflake.ID
	From       *time.Time
	To         *time.Time
}

// OutstandingFilter selects issued invoices with a balance due.
type OutstandingFilter struct {
	CustomerID *snowflake.ID
}

// CreditedLine is one credit note line returning an invoice line.
type CreditedLine struct {
	OriginalLine int
	Quantity     decimal.Decimal
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, doc *Document) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Document, error)
	// FindByIDForUpdate locks the document row until db's transaction ends.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Document, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Document, error)
	// ListWithItems returns every matching document with its items, oldest first.
	ListWithItems(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Document, error)
	// UpdateStatus moves a document from one of the given statuses and
	// reports whether a row matched.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, updates map[string]any) (bool, error)
	// ExpireQuotations marks DRAFT and SENT quotations valid before cutoff as EXPIRED.
	ExpireQuotations(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error)
	// UpdateSettlement stores the payment columns of an invoice.
	UpdateSettlement(ctx context.Context, db *gorm.DB, doc *Document) error
	// CreditedLines lists every credit note line issued against an invoice.
	CreditedLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]CreditedLine, error)
	// ListOutstanding returns matching invoices, newest first.
	ListOutstanding(ctx context.Context, db *gorm.DB, filter OutstandingFilter) ([]Document, error)
	// IssuedNumbers backs counter seeding for the sequence allocator.
	IssuedNumbers(ctx context.Context, db *gorm.DB, kind sequencedomain.SeriesKind, stem string) ([]string, error)
}
