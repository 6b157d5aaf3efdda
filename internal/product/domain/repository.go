package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Query  string
	HSN    string
	Active *bool
}

// InvoiceBalance is the net stock moved for one product by an invoice and
// its credit notes.
type InvoiceBalance struct {
	ProductID snowflake.ID
	Delta     decimal.Decimal
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	// FindByIDForUpdate locks the row until db's transaction ends.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	FindByBarcode(ctx context.Context, db *gorm.DB, barcode string) (*Product, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Product, error)
	ListLowStock(ctx context.Context, db *gorm.DB) ([]Product, error)
	Update(ctx context.Context, db *gorm.DB, product *Product) error

	InsertLog(ctx context.Context, db *gorm.DB, log *StockLog) error
	ListLogs(ctx context.Context, db *gorm.DB, productID snowflake.ID, limit int) ([]StockLog, error)
	InvoiceBalances(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceBalance, error)
}
