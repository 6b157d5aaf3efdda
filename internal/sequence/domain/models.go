package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SeriesKind identifies a numbering series.
type SeriesKind string

const (
	SeriesInvoice    SeriesKind = "INVOICE"
	SeriesQuotation  SeriesKind = "QUOTATION"
	SeriesCreditNote SeriesKind = "CREDIT_NOTE"
	SeriesDebitNote  SeriesKind = "DEBIT_NOTE"
)

func (k SeriesKind) Valid() bool {
	switch k {
	case SeriesInvoice, SeriesQuotation, SeriesCreditNote, SeriesDebitNote:
		return true
	default:
		return false
	}
}

// DocumentSeries is the persisted counter for one (kind, prefix, fiscal
// year). Rows are created lazily and LastNumber only moves forward.
type DocumentSeries struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	Kind       SeriesKind   `gorm:"type:varchar(32);not null;uniqueIndex:ux_document_series_key,priority:1"`
	Prefix     string       `gorm:"type:varchar(16);not null;uniqueIndex:ux_document_series_key,priority:2"`
	FiscalYear string       `gorm:"column:fiscal_year;type:varchar(16);not null;uniqueIndex:ux_document_series_key,priority:3"`
	LastNumber int64        `gorm:"column:last_number;not null;default:0"`
	CreatedAt  time.Time    `gorm:"not null"`
	UpdatedAt  time.Time    `gorm:"not null"`
}

func (DocumentSeries) TableName() string { return "document_series" }

// SeriesKey scopes a counter.
type SeriesKey struct {
	Kind       SeriesKind
	Prefix     string
	FiscalYear string
}

func (k SeriesKey) String() string {
	return string(k.Kind) + ":" + k.Prefix + ":" + k.FiscalYear
}

type NextNumberRequest struct {
	Kind SeriesKind
	// Prefix overrides the configured prefix for Kind when set.
	Prefix string
	// FiscalYearStartMonth overrides the configured start month when set.
	FiscalYearStartMonth int
	// Date selects the fiscal year; zero means now.
	Date time.Time
}

// Allocation is an issued document number.
type Allocation struct {
	Number     string     `json:"number"`
	Kind       SeriesKind `json:"kind"`
	Prefix     string     `json:"prefix"`
	FiscalYear string     `json:"fiscal_year"`
	Sequence   int64      `json:"sequence"`
	Attempts   int        `json:"-"`
}
