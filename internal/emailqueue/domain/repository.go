package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *EmailJob) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*EmailJob, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*EmailJob, error)
	CountByStatus(ctx context.Context, db *gorm.DB) (map[Status]int64, error)
	// Claim marks up to limit due PENDING jobs with token and returns them
	// oldest first. A job already holding a claim newer than leaseCutoff is
	// skipped.
	Claim(ctx context.Context, db *gorm.DB, token string, now, leaseCutoff time.Time, limit int) ([]*EmailJob, error)
	// UpdateIf applies updates only while the job is still in status from.
	UpdateIf(ctx context.Context, db *gorm.DB, id snowflake.ID, from Status, expectRetryCount *int, updates map[string]any) (bool, error)
	ReleaseStaleClaims(ctx context.Context, db *gorm.DB, leaseCutoff time.Time) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
