package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByKey(ctx context.Context, db *gorm.DB, key SeriesKey) (*DocumentSeries, error)
	// InsertIfAbsent creates the row unless another writer already did.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, series *DocumentSeries) error
	// CompareAndSwap moves LastNumber from old to next, stamping UpdatedAt
	// with at, and reports whether the row still held old.
	CompareAndSwap(ctx context.Context, db *gorm.DB, id snowflake.ID, old, next int64, at time.Time) (bool, error)
}

// IssuedNumberSource lists document numbers already stored under a series
// stem. It seeds counters for series that predate the counter table.
type IssuedNumberSource interface {
	IssuedNumbers(ctx context.Context, db *gorm.DB, kind SeriesKind, stem string) ([]string, error)
}
