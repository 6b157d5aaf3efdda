package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kanakku/internal/document/domain"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	"github.com/smallbiznis/kanakku/pkg/db/option"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// ProvideIssuedNumbers exposes stored document numbers to the sequence allocator.
func ProvideIssuedNumbers(r domain.Repository) sequencedomain.IssuedNumberSource {
	return r
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, doc *domain.Document) error {
	return db.WithContext(ctx).Create(doc).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Document, error) {
	return r.find(db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Document, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repo) find(stmt *gorm.DB, id snowflake.ID) (*domain.Document, error) {
	var doc domain.Document
	err := stmt.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line asc") }).
		Where("id = ?", id).
		Limit(1).
		Find(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == 0 {
		return nil, nil
	}
	return &doc, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Document, error) {
	var docs []*domain.Document
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Document{}), filter)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *repo) ListWithItems(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Document, error) {
	var docs []domain.Document
	err := applyFilter(db.WithContext(ctx).Model(&domain.Document{}), filter).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line asc") }).
		Order("document_date asc, id asc").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func applyFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	conds := []option.Condition{}
	if filter.Kind != "" {
		conds = append(conds, option.Condition{Field: "kind", Operator: option.EQ, Value: filter.Kind})
	}
	if filter.Status != "" {
		conds = append(conds, option.Condition{Field: "status", Operator: option.EQ, Value: filter.Status})
	}
	if filter.CustomerID != nil {
		conds = append(conds, option.Condition{Field: "customer_id", Operator: option.EQ, Value: *filter.CustomerID})
	}
	if filter.From != nil {
		conds = append(conds, option.Condition{Field: "document_date", Operator: option.GTE, Value: *filter.From})
	}
	if filter.To != nil {
		conds = append(conds, option.Condition{Field: "document_date", Operator: option.LT, Value: *filter.To})
	}
	for _, cond := range conds {
		stmt = option.ApplyOperator(cond).Apply(stmt)
	}
	return stmt
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, updates map[string]any) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ExpireQuotations(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE documents SET status = ?, updated_at = ?
		 WHERE kind = ? AND status IN ? AND valid_until IS NOT NULL AND valid_until < ?`,
		domain.StatusExpired,
		now,
		sequencedomain.SeriesQuotation,
		[]domain.Status{domain.StatusDraft, domain.StatusSent},
		cutoff,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) UpdateSettlement(ctx context.Context, db *gorm.DB, doc *domain.Document) error {
	return db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", doc.ID).
		Updates(map[string]any{
			"amount_paid":     doc.AmountPaid,
			"credited_amount": doc.CreditedAmount,
			"balance_due":     doc.BalanceDue,
			"payment_status":  doc.PaymentStatus,
			"updated_at":      doc.UpdatedAt,
		}).Error
}

func (r *repo) CreditedLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.CreditedLine, error) {
	var lines []domain.CreditedLine
	err := db.WithContext(ctx).
		Table("document_items").
		Select("document_items.original_line, document_items.quantity").
		Joins("JOIN documents ON documents.id = document_items.document_id").
		Where("documents.kind = ? AND documents.original_document_id = ?", sequencedomain.SeriesCreditNote, invoiceID).
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) ListOutstanding(ctx context.Context, db *gorm.DB, filter domain.OutstandingFilter) ([]domain.Document, error) {
	var docs []domain.Document
	stmt := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("kind = ? AND status = ? AND balance_due > 0", sequencedomain.SeriesInvoice, domain.StatusIssued)
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	err := stmt.Order("document_date desc, id desc").Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *repo) IssuedNumbers(ctx context.Context, db *gorm.DB, kind sequencedomain.SeriesKind, stem string) ([]string, error) {
	var numbers []string
	err := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("kind = ? AND number LIKE ?", kind, stem+"%").
		Pluck("number", &numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}
