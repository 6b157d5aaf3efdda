package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoicePayment is money received against an invoice. Split payments
// are stored as one row per mode.
type InvoicePayment struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	PaymentMode string          `gorm:"type:varchar(20);not null" json:"payment_mode"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	PaymentDate time.Time       `gorm:"not null;index" json:"payment_date"`
	Reference   string          `gorm:"type:varchar(100)" json:"reference,omitempty"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (InvoicePayment) TableName() string { return "invoice_payments" }

// ModeTotal is the money received through one payment mode.
type ModeTotal struct {
	PaymentMode string          `json:"payment_mode"`
	Amount      decimal.Decimal `json:"amount"`
	Count       int             `json:"count"`
}

// Summary totals payments received over a date range.
type Summary struct {
	From   time.Time       `json:"from"`
	To     time.Time       `json:"to"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
	ByMode []ModeTotal     `json:"by_mode"`
}
