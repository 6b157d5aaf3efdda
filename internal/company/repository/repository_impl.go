package repository

import (
	"context"

	"github.com/smallbiznis/kanakku/internal/company/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Get(ctx context.Context, db *gorm.DB) (*domain.Company, error) {
	var company domain.Company
	err := db.WithContext(ctx).Where("id = ?", domain.SingletonID).Limit(1).Find(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	company.ID = domain.SingletonID
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(company).Error
}
