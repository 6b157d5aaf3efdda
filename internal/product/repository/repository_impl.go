package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kanakku/internal/product/domain"
	"github.com/smallbiznis/kanakku/pkg/db/option"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Create(product).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	return r.first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	return r.first(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) FindByBarcode(ctx context.Context, db *gorm.DB, barcode string) (*domain.Product, error) {
	return r.first(db.WithContext(ctx).Where("barcode = ?", barcode).Order("active desc, id asc"))
}

func (r *repo) first(stmt *gorm.DB) (*domain.Product, error) {
	var p domain.Product
	if err := stmt.Limit(1).Find(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Product, error) {
	var items []*domain.Product
	stmt := db.WithContext(ctx).Model(&domain.Product{})
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		stmt = stmt.Where("(LOWER(name) LIKE ? OR barcode LIKE ?)", like, like)
	}
	if filter.HSN != "" {
		stmt = option.ApplyOperator(option.Condition{Field: "hsn_code", Operator: option.EQ, Value: filter.HSN}).Apply(stmt)
	}
	if filter.Active != nil {
		stmt = option.ApplyOperator(option.Condition{Field: "active", Operator: option.EQ, Value: *filter.Active}).Apply(stmt)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListLowStock(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var items []domain.Product
	err := db.WithContext(ctx).
		Where("active = ? AND stock_qty <= low_stock_alert", true).
		Order("stock_qty asc, name asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"name":            product.Name,
			"barcode":         product.Barcode,
			"hsn_code":        product.HSNCode,
			"unit":            product.Unit,
			"price":           product.Price,
			"gst_rate":        product.GSTRate,
			"stock_qty":       product.StockQty,
			"low_stock_alert": product.LowStockAlert,
			"active":          product.Active,
			"updated_at":      product.UpdatedAt,
		}).Error
}

func (r *repo) InsertLog(ctx context.Context, db *gorm.DB, log *domain.StockLog) error {
	return db.WithContext(ctx).Create(log).Error
}

func (r *repo) ListLogs(ctx context.Context, db *gorm.DB, productID snowflake.ID, limit int) ([]domain.StockLog, error) {
	var logs []domain.StockLog
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// InvoiceBalances sums in Go so fractional quantities keep decimal precision.
func (r *repo) InvoiceBalances(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceBalance, error) {
	var logs []domain.StockLog
	err := db.WithContext(ctx).
		Select("product_id", "delta").
		Where("invoice_id = ?", invoiceID).
		Order("id asc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}

	order := []snowflake.ID{}
	sums := map[snowflake.ID]decimal.Decimal{}
	for _, log := range logs {
		if _, ok := sums[log.ProductID]; !ok {
			order = append(order, log.ProductID)
		}
		sums[log.ProductID] = sums[log.ProductID].Add(log.Delta)
	}
	out := make([]domain.InvoiceBalance, 0, len(order))
	for _, id := range order {
		out = append(out, domain.InvoiceBalance{ProductID: id, Delta: sums[id]})
	}
	return out, nil
}
