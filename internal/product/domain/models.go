package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry that can be billed by ID or barcode.
// StockQty may go negative when sales are billed before stock is received.
type Product struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(200);not null;index" json:"name"`
	Barcode       string          `gorm:"type:varchar(50);index" json:"barcode,omitempty"`
	HSNCode       string          `gorm:"column:hsn_code;type:varchar(8);index" json:"hsn_code,omitempty"`
	Unit          string          `gorm:"type:varchar(8);not null" json:"unit"`
	Price         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	GSTRate       decimal.Decimal `gorm:"column:gst_rate;type:decimal(5,2);not null" json:"gst_rate"`
	StockQty      decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"stock_qty"`
	LowStockAlert decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"low_stock_alert"`
	Active        bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// IsLowStock reports whether stock is at or below the alert level.
func (p Product) IsLowStock() bool {
	return p.StockQty.LessThanOrEqual(p.LowStockAlert)
}

// Stock movement reasons.
const (
	ReasonOpening          = "OPENING"
	ReasonSale             = "SALE"
	ReasonReturn           = "RETURN"
	ReasonInvoiceCancelled = "INVOICE_CANCELLED"
	ReasonPurchase         = "PURCHASE"
	ReasonAdjustment       = "ADJUSTMENT"
	ReasonDamage           = "DAMAGE"
)

// ManualReasons are the reasons an operator may give for AdjustStock.
var ManualReasons = []string{ReasonPurchase, ReasonAdjustment, ReasonDamage}

// StockLog records one change to a product's stock. InvoiceID ties sale,
// return and cancellation movements to the invoice they belong to.
type StockLog struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	ProductID  snowflake.ID    `gorm:"not null;index" json:"product_id"`
	Delta      decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"delta"`
	Balance    decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"balance"`
	Reason     string          `gorm:"type:varchar(32);not null" json:"reason"`
	Reference  string          `gorm:"type:varchar(100)" json:"reference,omitempty"`
	DocumentID *snowflake.ID   `json:"document_id,omitempty"`
	InvoiceID  *snowflake.ID   `gorm:"index" json:"invoice_id,omitempty"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
}

func (StockLog) TableName() string { return "stock_logs" }

// Movement is a stock change requested by billing or an operator.
type Movement struct {
	ProductID  snowflake.ID
	Delta      decimal.Decimal
	Reason     string
	Reference  string
	DocumentID *snowflake.ID
	InvoiceID  *snowflake.ID
}
