package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	"github.com/smallbiznis/kanakku/pkg/db/option"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *domain.EmailJob) error {
	return db.WithContext(ctx).Create(job).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.EmailJob, error) {
	var job domain.EmailJob
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.EmailJob, error) {
	var jobs []*domain.EmailJob
	stmt := db.WithContext(ctx).Model(&domain.EmailJob{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB) (map[domain.Status]int64, error) {
	var rows []struct {
		Status domain.Status
		Count  int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS count FROM email_jobs GROUP BY status`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[domain.Status]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, token string, now, leaseCutoff time.Time, limit int) ([]*domain.EmailJob, error) {
	var jobs []*domain.EmailJob
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		err := tx.Model(&domain.EmailJob{}).
			Where("status = ?", domain.StatusPending).
			Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
			Where("claim_token IS NULL OR claimed_at < ?", leaseCutoff).
			Order("created_at asc, id asc").
			Limit(limit).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		// The guard is repeated so a concurrent claimer that won the race
		// keeps its rows.
		err = tx.Exec(
			`UPDATE email_jobs SET claim_token = ?, claimed_at = ?, updated_at = ?
			 WHERE id IN ? AND status = ? AND (claim_token IS NULL OR claimed_at < ?)`,
			token,
			now,
			now,
			ids,
			domain.StatusPending,
			leaseCutoff,
		).Error
		if err != nil {
			return err
		}

		return tx.Where("claim_token = ?", token).
			Order("created_at asc, id asc").
			Find(&jobs).Error
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) UpdateIf(ctx context.Context, db *gorm.DB, id snowflake.ID, from domain.Status, expectRetryCount *int, updates map[string]any) (bool, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.EmailJob{}).
		Where("id = ? AND status = ?", id, from)
	if expectRetryCount != nil {
		stmt = stmt.Where("retry_count = ?", *expectRetryCount)
	}
	result := stmt.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ReleaseStaleClaims(ctx context.Context, db *gorm.DB, leaseCutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE email_jobs SET claim_token = NULL, claimed_at = NULL
		 WHERE status = ? AND claim_token IS NOT NULL AND claimed_at < ?`,
		domain.StatusPending,
		leaseCutoff,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.EmailJob{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
