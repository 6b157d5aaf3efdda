package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Get(ctx context.Context, db *gorm.DB) (*Company, error)
	Upsert(ctx context.Context, db *gorm.DB, company *Company) error
}
