package service

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kanakku/internal/clock"
	"github.com/smallbiznis/kanakku/internal/observability/logger"
	"github.com/smallbiznis/kanakku/internal/product/domain"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultUnit    = "NOS"
	historyLimit   = 200
	maxBarcodeSize = 50
)

var defaultLowStockAlert = decimal.NewFromInt(10)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	hsn, err := normalizeHSN(req.HSNCode)
	if err != nil {
		return nil, err
	}
	unit, err := normalizeUnit(req.Unit)
	if err != nil {
		return nil, err
	}
	if req.Price.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}
	if !taxdomain.IsAllowedRate(req.GSTRate) {
		return nil, domain.ErrInvalidGSTRate
	}
	if req.StockQty.IsNegative() {
		return nil, domain.ErrInvalidQuantity
	}
	alert := defaultLowStockAlert
	if req.LowStockAlert != nil {
		alert = *req.LowStockAlert
	}
	if alert.IsNegative() {
		return nil, domain.ErrInvalidQuantity
	}

	now := s.clock.Now().UTC()
	product := &domain.Product{
		ID:            s.genID.Generate(),
		Name:          name,
		HSNCode:       hsn,
		Unit:          unit,
		Price:         req.Price.Round(2),
		GSTRate:       req.GSTRate,
		StockQty:      req.StockQty,
		LowStockAlert: alert,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		barcode, err := s.checkBarcode(ctx, tx, req.Barcode, 0)
		if err != nil {
			return err
		}
		product.Barcode = barcode
		if err := s.repo.Insert(ctx, tx, product); err != nil {
			return err
		}
		if !product.StockQty.IsPositive() {
			return nil
		}
		return s.repo.InsertLog(ctx, tx, &domain.StockLog{
			ID:        s.genID.Generate(),
			ProductID: product.ID,
			Delta:     product.StockQty,
			Balance:   product.StockQty,
			Reason:    domain.ReasonOpening,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("hsn_code", product.HSNCode),
		zap.String("stock_qty", product.StockQty.String()),
	)
	return product, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	product, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	return product, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{
		Query: strings.ToLower(strings.TrimSpace(req.Query)),
		HSN:   strings.TrimSpace(req.HSN),
	}
	if req.ActiveOnly {
		active := true
		filter.Active = &active
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(p *domain.Product) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        p.ID.String(),
			CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	products := make([]domain.Product, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		products = append(products, *item)
	}
	resp := domain.ListResponse{Products: products}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Product, error) {
	productID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	var product *domain.Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			item.Name = name
		}
		if req.Barcode != nil {
			barcode, err := s.checkBarcode(ctx, tx, *req.Barcode, item.ID)
			if err != nil {
				return err
			}
			item.Barcode = barcode
		}
		if req.HSNCode != nil {
			hsn, err := normalizeHSN(*req.HSNCode)
			if err != nil {
				return err
			}
			item.HSNCode = hsn
		}
		if req.Unit != nil {
			unit, err := normalizeUnit(*req.Unit)
			if err != nil {
				return err
			}
			item.Unit = unit
		}
		if req.Price != nil {
			if req.Price.IsNegative() {
				return domain.ErrInvalidPrice
			}
			item.Price = req.Price.Round(2)
		}
		if req.GSTRate != nil {
			if !taxdomain.IsAllowedRate(*req.GSTRate) {
				return domain.ErrInvalidGSTRate
			}
			item.GSTRate = *req.GSTRate
		}
		if req.LowStockAlert != nil {
			if req.LowStockAlert.IsNegative() {
				return domain.ErrInvalidQuantity
			}
			item.LowStockAlert = *req.LowStockAlert
		}
		if req.Active != nil {
			item.Active = *req.Active
		}

		item.UpdatedAt = s.clock.Now().UTC()
		product = item
		return s.repo.Update(ctx, tx, item)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) Archive(ctx context.Context, id string) (*domain.Product, error) {
	inactive := false
	return s.Update(ctx, domain.UpdateRequest{ID: id, Active: &inactive})
}

func (s *Service) FindByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, domain.ErrNotFound
	}
	product, err := s.repo.FindByBarcode(ctx, s.db, barcode)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.Active {
		return nil, domain.ErrNotFound
	}
	return product, nil
}

func (s *Service) FindByHSN(ctx context.Context, hsn string) ([]domain.Product, error) {
	hsn = strings.TrimSpace(hsn)
	if hsn == "" || taxdomain.ValidateHSN(hsn) != nil {
		return nil, domain.ErrInvalidHSN
	}
	resp, err := s.List(ctx, domain.ListRequest{HSN: hsn, ActiveOnly: true, PageSize: 250})
	if err != nil {
		return nil, err
	}
	return resp.Products, nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStock(ctx, s.db)
}

// AdjustStock records a manual change. Manual changes may not take stock
// below zero.
func (s *Service) AdjustStock(ctx context.Context, req domain.AdjustStockRequest) (*domain.AdjustStockResponse, error) {
	productID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if req.Delta.IsZero() {
		return nil, domain.ErrInvalidQuantity
	}
	reason := strings.ToUpper(strings.TrimSpace(req.Reason))
	if reason == "" {
		reason = domain.ReasonAdjustment
	}
	if !slices.Contains(domain.ManualReasons, reason) {
		return nil, domain.ErrInvalidReason
	}

	var resp domain.AdjustStockResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, log, err := s.move(ctx, tx, domain.Movement{
			ProductID: productID,
			Delta:     req.Delta,
			Reason:    reason,
			Reference: truncate(strings.TrimSpace(req.Reference), 100),
		})
		if err != nil {
			return err
		}
		if product.StockQty.IsNegative() {
			return domain.ErrInsufficientStock
		}
		resp = domain.AdjustStockResponse{Product: *product, Log: *log}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("stock adjusted",
		zap.String("product_id", productID.String()),
		zap.String("reason", reason),
		zap.String("delta", req.Delta.String()),
		zap.String("balance", resp.Product.StockQty.String()),
	)
	return &resp, nil
}

func (s *Service) StockHistory(ctx context.Context, id string) ([]domain.StockLog, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLogs(ctx, s.db, product.ID, historyLimit)
}

func (s *Service) ResolveTx(ctx context.Context, tx *gorm.DB, ref string) (*domain.Product, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if id, err := snowflake.ParseString(ref); err == nil && id != 0 {
		product, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if product != nil && product.Active {
			return product, nil
		}
	}
	product, err := s.repo.FindByBarcode(ctx, tx, ref)
	if err != nil || product == nil || !product.Active {
		return nil, err
	}
	return product, nil
}

func (s *Service) MoveTx(ctx context.Context, tx *gorm.DB, movements []domain.Movement) error {
	for _, m := range movements {
		if m.Delta.IsZero() {
			continue
		}
		product, _, err := s.move(ctx, tx, m)
		if err != nil {
			return err
		}
		if product.StockQty.IsNegative() {
			logger.WithContext(ctx, s.log).Warn("stock below zero after billing",
				zap.String("product_id", product.ID.String()),
				zap.String("reason", m.Reason),
				zap.String("balance", product.StockQty.String()),
			)
		}
	}
	return nil
}

func (s *Service) ReverseInvoiceTx(ctx context.Context, tx *gorm.DB, invoiceID, documentID snowflake.ID, reference string) error {
	balances, err := s.repo.InvoiceBalances(ctx, tx, invoiceID)
	if err != nil {
		return err
	}
	movements := make([]domain.Movement, 0, len(balances))
	for _, b := range balances {
		if b.Delta.IsZero() {
			continue
		}
		inv, doc := invoiceID, documentID
		movements = append(movements, domain.Movement{
			ProductID:  b.ProductID,
			Delta:      b.Delta.Neg(),
			Reason:     domain.ReasonInvoiceCancelled,
			Reference:  reference,
			DocumentID: &doc,
			InvoiceID:  &inv,
		})
	}
	return s.MoveTx(ctx, tx, movements)
}

func (s *Service) move(ctx context.Context, tx *gorm.DB, m domain.Movement) (*domain.Product, *domain.StockLog, error) {
	product, err := s.repo.FindByIDForUpdate(ctx, tx, m.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, nil, domain.ErrNotFound
	}

	now := s.clock.Now().UTC()
	product.StockQty = product.StockQty.Add(m.Delta)
	product.UpdatedAt = now
	if err := s.repo.Update(ctx, tx, product); err != nil {
		return nil, nil, err
	}

	log := &domain.StockLog{
		ID:         s.genID.Generate(),
		ProductID:  product.ID,
		Delta:      m.Delta,
		Balance:    product.StockQty,
		Reason:     m.Reason,
		Reference:  m.Reference,
		DocumentID: m.DocumentID,
		InvoiceID:  m.InvoiceID,
		CreatedAt:  now,
	}
	if err := s.repo.InsertLog(ctx, tx, log); err != nil {
		return nil, nil, err
	}
	return product, log, nil
}

// checkBarcode trims barcode and rejects it when another product uses it.
func (s *Service) checkBarcode(ctx context.Context, tx *gorm.DB, barcode string, self snowflake.ID) (string, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return "", nil
	}
	if len(barcode) > maxBarcodeSize {
		return "", domain.ErrInvalidBarcode
	}
	existing, err := s.repo.FindByBarcode(ctx, tx, barcode)
	if err != nil {
		return "", err
	}
	if existing != nil && existing.ID != self {
		return "", domain.ErrDuplicateBarcode
	}
	return barcode, nil
}

func normalizeHSN(value string) (string, error) {
	hsn := strings.TrimSpace(value)
	if err := taxdomain.ValidateHSN(hsn); err != nil {
		return "", domain.ErrInvalidHSN
	}
	return hsn, nil
}

func normalizeUnit(value string) (string, error) {
	unit := strings.ToUpper(strings.TrimSpace(value))
	if unit == "" {
		return defaultUnit, nil
	}
	if len(unit) > 8 {
		return "", domain.ErrInvalidUnit
	}
	return unit, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
