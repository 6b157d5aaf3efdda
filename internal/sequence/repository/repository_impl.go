package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kanakku/internal/sequence/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, key domain.SeriesKey) (*domain.DocumentSeries, error) {
	var series domain.DocumentSeries
	err := db.WithContext(ctx).Raw(
		`SELECT id, kind, prefix, fiscal_year, last_number, created_at, updated_at
		 FROM document_series WHERE kind = ? AND prefix = ? AND fiscal_year = ?`,
		key.Kind,
		key.Prefix,
		key.FiscalYear,
	).Scan(&series).Error
	if err != nil {
		return nil, err
	}
	if series.ID == 0 {
		return nil, nil
	}
	return &series, nil
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, series *domain.DocumentSeries) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(series).Error
}

func (r *repo) CompareAndSwap(ctx context.Context, db *gorm.DB, id snowflake.ID, old, next int64, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE document_series SET last_number = ?, updated_at = ?
		 WHERE id = ? AND last_number = ?`,
		next,
		at.UTC(),
		id,
		old,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
