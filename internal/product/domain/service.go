package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateRequest struct {
	Name          string           `json:"name"`
	Barcode       string           `json:"barcode"`
	HSNCode       string           `json:"hsn_code"`
	Unit          string           `json:"unit"`
	Price         decimal.Decimal  `json:"price"`
	GSTRate       decimal.Decimal  `json:"gst_rate"`
	StockQty      decimal.Decimal  `json:"stock_qty"`
	LowStockAlert *decimal.Decimal `json:"low_stock_alert"`
}

// UpdateRequest changes only the fields that are set. Stock is changed
// through AdjustStock so every change is logged.
type UpdateRequest struct {
	ID            string           `json:"-"`
	Name          *string          `json:"name"`
	Barcode       *string          `json:"barcode"`
	HSNCode       *string          `json:"hsn_code"`
	Unit          *string          `json:"unit"`
	Price         *decimal.Decimal `json:"price"`
	GSTRate       *decimal.Decimal `json:"gst_rate"`
	LowStockAlert *decimal.Decimal `json:"low_stock_alert"`
	Active        *bool            `json:"active"`
}

type ListRequest struct {
	Query      string
	HSN        string
	ActiveOnly bool
	PageToken  string
	PageSize   int
}

type ListResponse struct {
	pagination.PageInfo
	Products []Product `json:"products"`
}

type AdjustStockRequest struct {
	ID        string          `json:"-"`
	Delta     decimal.Decimal `json:"delta"`
	Reason    string          `json:"reason"`
	Reference string          `json:"reference"`
}

type AdjustStockResponse struct {
	Product Product  `json:"product"`
	Log     StockLog `json:"log"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Update(ctx context.Context, req UpdateRequest) (*Product, error)
	// Archive hides a product from billing lookups. Its stock history stays.
	Archive(ctx context.Context, id string) (*Product, error)

	FindByBarcode(ctx context.Context, barcode string) (*Product, error)
	FindByHSN(ctx context.Context, hsn string) ([]Product, error)
	LowStock(ctx context.Context) ([]Product, error)

	AdjustStock(ctx context.Context, req AdjustStockRequest) (*AdjustStockResponse, error)
	StockHistory(ctx context.Context, id string) ([]StockLog, error)

	// ResolveTx finds an active product by ID or barcode. It returns nil
	// when ref matches nothing.
	ResolveTx(ctx context.Context, tx *gorm.DB, ref string) (*Product, error)
	// MoveTx applies movements inside the caller's transaction.
	MoveTx(ctx context.Context, tx *gorm.DB, movements []Movement) error
	// ReverseInvoiceTx undoes the net stock moved by an invoice and its
	// credit notes.
	ReverseInvoiceTx(ctx context.Context, tx *gorm.DB, invoiceID, documentID snowflake.ID, reference string) error
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("not_found")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidHSN        = errors.New("invalid_hsn")
	ErrInvalidUnit       = errors.New("invalid_unit")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrInvalidGSTRate    = errors.New("invalid_gst_rate")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidReason     = errors.New("invalid_reason")
	ErrInvalidBarcode    = errors.New("invalid_barcode")
	ErrDuplicateBarcode  = errors.New("duplicate_barcode")
	ErrInsufficientStock = errors.New("insufficient_stock")
)
