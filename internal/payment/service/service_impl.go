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
	"github.com/smallbiznis/kanakku/internal/config"
	documentdomain "github.com/smallbiznis/kanakku/internal/document/domain"
	"github.com/smallbiznis/kanakku/internal/observability/logger"
	"github.com/smallbiznis/kanakku/internal/payment/domain"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Cfg       config.Config
	Clock     clock.Clock
	Repo      domain.Repository
	Documents documentdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	loc       *time.Location
	clock     clock.Clock
	repo      domain.Repository
	documents documentdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		loc:       p.Cfg.Location(),
		clock:     p.Clock,
		repo:      p.Repo,
		documents: p.Documents,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (*domain.RecordResponse, error) {
	var resp *domain.RecordResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		resp, err = s.RecordTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) RecordTx(ctx context.Context, tx *gorm.DB, req domain.RecordRequest) (*domain.RecordResponse, error) {
	invoiceID, err := parseID(req.InvoiceID)
	if err != nil {
		return nil, err
	}
	splits, total, err := normalizeSplits(req.Splits)
	if err != nil {
		return nil, err
	}

	invoice, err := s.lockInvoice(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == documentdomain.StatusCancelled {
		return nil, domain.ErrInvoiceCancelled
	}
	if total.GreaterThan(invoice.BalanceDue) {
		return nil, domain.ErrOverpayment
	}

	now := s.clock.Now().UTC()
	date := s.day(req.Date)
	notes := strings.TrimSpace(req.Notes)
	payments := make([]domain.InvoicePayment, 0, len(splits))
	for _, split := range splits {
		payment := domain.InvoicePayment{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			PaymentMode: split.PaymentMode,
			Amount:      split.Amount,
			PaymentDate: date,
			Reference:   split.Reference,
			Notes:       notes,
			CreatedAt:   now,
		}
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	invoice.AmountPaid = invoice.AmountPaid.Add(total)
	invoice.UpdatedAt = now
	invoice.Settle()
	if err := s.documents.UpdateSettlement(ctx, tx, invoice); err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("payment recorded",
		zap.String("invoice_number", invoice.Number),
		zap.Int("splits", len(payments)),
		zap.String("amount", total.StringFixed(2)),
		zap.String("payment_status", string(invoice.PaymentStatus)),
	)
	return &domain.RecordResponse{Payments: payments, Invoice: *invoice}, nil
}

// Delete removes a payment and reopens its amount on the invoice.
func (s *Service) Delete(ctx context.Context, id string) (*documentdomain.Document, error) {
	paymentID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var invoice *documentdomain.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrNotFound
		}
		invoice, err = s.lockInvoice(ctx, tx, payment.InvoiceID)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, payment.ID); err != nil {
			return err
		}

		invoice.AmountPaid = decimal.Max(decimal.Zero, invoice.AmountPaid.Sub(payment.Amount))
		invoice.UpdatedAt = s.clock.Now().UTC()
		invoice.Settle()
		return s.documents.UpdateSettlement(ctx, tx, invoice)
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("payment deleted",
		zap.String("payment_id", paymentID.String()),
		zap.String("invoice_number", invoice.Number),
		zap.String("payment_status", string(invoice.PaymentStatus)),
	)
	return invoice, nil
}

func (s *Service) List(ctx context.Context, invoiceID string) ([]domain.InvoicePayment, error) {
	id, err := parseID(invoiceID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.documents.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil || invoice.Kind != sequencedomain.SeriesInvoice {
		return nil, domain.ErrInvoiceNotFound
	}
	return s.repo.ListByInvoice(ctx, s.db, id)
}

func (s *Service) Outstanding(ctx context.Context, req domain.OutstandingRequest) (*domain.OutstandingResponse, error) {
	filter := documentdomain.OutstandingFilter{}
	if strings.TrimSpace(req.CustomerID) != "" {
		id, err := parseID(req.CustomerID)
		if err != nil {
			return nil, err
		}
		filter.CustomerID = &id
	}

	invoices, err := s.documents.ListOutstanding(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	resp := &domain.OutstandingResponse{Invoices: invoices, TotalDue: decimal.Zero, TotalCount: len(invoices)}
	for _, inv := range invoices {
		resp.TotalDue = resp.TotalDue.Add(inv.BalanceDue)
	}
	return resp, nil
}

// Summary totals payments dated from..to inclusive, grouped by mode in
// the order modes are listed for billing.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*domain.Summary, error) {
	start := s.day(&from)
	end := s.day(&to)
	if end.Before(start) {
		return nil, domain.ErrInvalidDateRange
	}

	payments, err := s.repo.ListByDate(ctx, s.db, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	byMode := map[string]*domain.ModeTotal{}
	summary := &domain.Summary{From: start, To: end, Total: decimal.Zero, Count: len(payments)}
	for _, p := range payments {
		total, ok := byMode[p.PaymentMode]
		if !ok {
			total = &domain.ModeTotal{PaymentMode: p.PaymentMode, Amount: decimal.Zero}
			byMode[p.PaymentMode] = total
		}
		total.Amount = total.Amount.Add(p.Amount)
		total.Count++
		summary.Total = summary.Total.Add(p.Amount)
	}
	for _, mode := range documentdomain.PaymentModes {
		if total, ok := byMode[mode]; ok {
			summary.ByMode = append(summary.ByMode, *total)
		}
	}
	return summary, nil
}

func (s *Service) lockInvoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*documentdomain.Document, error) {
	invoice, err := s.documents.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil || invoice.Kind != sequencedomain.SeriesInvoice {
		return nil, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

// day truncates t (or now) to midnight in the business timezone and
// returns it in UTC for storage.
func (s *Service) day(t *time.Time) time.Time {
	ref := s.clock.Now()
	if t != nil && !t.IsZero() {
		ref = *t
	}
	local := ref.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc).UTC()
}

// normalizeSplits validates modes and amounts. CREDIT is a billing mode,
// not money received, so it cannot settle an invoice.
func normalizeSplits(in []domain.Split) ([]domain.Split, decimal.Decimal, error) {
	if len(in) == 0 {
		return nil, decimal.Zero, domain.ErrNoSplits
	}
	out := make([]domain.Split, 0, len(in))
	total := decimal.Zero
	for _, split := range in {
		mode := strings.ToUpper(strings.TrimSpace(split.PaymentMode))
		if mode == "" {
			mode = documentdomain.DefaultPaymentMode
		}
		if mode == documentdomain.PaymentModeCredit || !slices.Contains(documentdomain.PaymentModes, mode) {
			return nil, decimal.Zero, domain.ErrInvalidPaymentMode
		}
		amount := split.Amount.Round(2)
		if !amount.IsPositive() {
			return nil, decimal.Zero, domain.ErrInvalidAmount
		}
		out = append(out, domain.Split{
			PaymentMode: mode,
			Amount:      amount,
			Reference:   truncate(strings.TrimSpace(split.Reference), 100),
		})
		total = total.Add(amount)
	}
	return out, total, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// truncate cuts on a rune boundary.
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
