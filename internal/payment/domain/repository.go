package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *InvoicePayment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*InvoicePayment, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoicePayment, error)
	// ListByDate returns payments dated in [from, to), oldest first.
	ListByDate(ctx context.Context, db *gorm.DB, from, to time.Time) ([]InvoicePayment, error)
}
