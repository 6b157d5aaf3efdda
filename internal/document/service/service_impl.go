package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kanakku/internal/clock"
	companydomain "github.com/smallbiznis/kanakku/internal/company/domain"
	"github.com/smallbiznis/kanakku/internal/config"
	customerdomain "github.com/smallbiznis/kanakku/internal/customer/domain"
	"github.com/smallbiznis/kanakku/internal/document/domain"
	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	"github.com/smallbiznis/kanakku/internal/observability/logger"
	"github.com/smallbiznis/kanakku/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/kanakku/internal/payment/domain"
	productdomain "github.com/smallbiznis/kanakku/internal/product/domain"
	"github.com/smallbiznis/kanakku/internal/providers/pdf"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
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
	Engine    taxdomain.Engine
	Sequence  sequencedomain.Service
	Queue     emailqueuedomain.Service
	Company   companydomain.Service
	Customers customerdomain.Service
	Products  productdomain.Service
	Payments  paymentdomain.Service
	PDF       pdf.Provider     `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	loc       *time.Location
	clock     clock.Clock
	repo      domain.Repository
	engine    taxdomain.Engine
	sequence  sequencedomain.Service
	queue     emailqueuedomain.Service
	company   companydomain.Service
	customers customerdomain.Service
	products  productdomain.Service
	payments  paymentdomain.Service
	pdf       pdf.Provider
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("document.service"),
		genID:     p.GenID,
		loc:       p.Cfg.Location(),
		clock:     p.Clock,
		repo:      p.Repo,
		engine:    p.Engine,
		sequence:  p.Sequence,
		queue:     p.Queue,
		company:   p.Company,
		customers: p.Customers,
		products:  p.Products,
		payments:  p.Payments,
		pdf:       p.PDF,
		metrics:   p.Metrics,
	}
}

// draft carries everything issue needs to price, number and store one document.
type draft struct {
	kind          sequencedomain.SeriesKind
	status        domain.Status
	date          time.Time
	buyer         buyer
	items         []taxdomain.LineItem
	discount      decimal.Decimal
	paymentMode   string
	notes         string
	validUntil    *time.Time
	original      *domain.Document
	reason        string
	reasonDetails string
	// originalLines maps each credit note item to the invoice line it returns.
	originalLines []int
	// stock is -1 when the document takes goods out of stock, +1 when it
	// puts them back and 0 when it does not move stock.
	stock int
}

type buyer struct {
	customerID *snowflake.ID
	name       string
	gstin      string
	stateCode  string
	address    string
	email      string
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (*domain.Document, error) {
	b, err := s.resolveBuyer(ctx, req.Buyer)
	if err != nil {
		return nil, err
	}
	mode, err := normalizePaymentMode(req.PaymentMode)
	if err != nil {
		return nil, err
	}
	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, err
	}

	d := draft{
		kind:        sequencedomain.SeriesInvoice,
		status:      domain.StatusIssued,
		date:        s.day(req.Date),
		buyer:       b,
		items:       req.Items,
		discount:    req.Discount,
		paymentMode: mode,
		notes:       strings.TrimSpace(req.Notes),
		stock:       -1,
	}

	var doc *domain.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = s.issue(ctx, tx, company, d)
		if err != nil {
			return err
		}
		if err := s.openBalance(ctx, tx, doc, req.AmountPaid); err != nil {
			return err
		}
		if !req.SendEmail && !company.AutoEmailInvoices {
			return nil
		}
		recipient := firstNonEmpty(req.EmailTo, doc.BuyerEmail, company.EmailRecipient)
		if recipient == "" {
			if req.SendEmail {
				return domain.ErrNoRecipient
			}
			logger.WithContext(ctx, s.log).Info("auto email skipped, no recipient",
				zap.String("document_number", doc.Number),
			)
			return nil
		}
		_, err = s.queue.EnqueueTx(ctx, tx, s.composeEmail(doc, company, recipient))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.issued(ctx, doc)
	return doc, nil
}

func (s *Service) CreateQuotation(ctx context.Context, req domain.CreateQuotationRequest) (*domain.Document, error) {
	b, err := s.resolveBuyer(ctx, req.Buyer)
	if err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = domain.StatusDraft
	}
	if status != domain.StatusDraft && status != domain.StatusSent {
		return nil, domain.ErrInvalidStatus
	}
	days := req.ValidityDays
	if days == 0 {
		days = domain.DefaultQuotationDays
	}
	if days < 0 {
		return nil, domain.ErrInvalidValidity
	}
	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, err
	}

	date := s.day(req.Date)
	validUntil := date.AddDate(0, 0, days)
	d := draft{
		kind:       sequencedomain.SeriesQuotation,
		status:     status,
		date:       date,
		buyer:      b,
		items:      req.Items,
		discount:   req.Discount,
		notes:      strings.TrimSpace(req.Notes),
		validUntil: &validUntil,
	}

	var doc *domain.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = s.issue(ctx, tx, company, d)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.issued(ctx, doc)
	return doc, nil
}

// CreateCreditNote credits lines of an issued invoice at their original
// rates. Each line is clamped to the quantity not yet credited by earlier
// notes; unknown or non-positive lines are ignored.
func (s *Service) CreateCreditNote(ctx context.Context, req domain.CreateCreditNoteRequest) (*domain.Document, error) {
	reason := domain.NormalizeReason(strings.ToUpper(strings.TrimSpace(req.Reason)), domain.CreditNoteReasons)
	restock := reason == domain.ReasonReturn
	if req.RestoreStock != nil {
		restock = *req.RestoreStock
	}

	return s.createNote(ctx, sequencedomain.SeriesCreditNote, req.OriginalInvoiceID, req.Date, reason, req.ReasonDetails,
		func(tx *gorm.DB, original *domain.Document, d *draft) error {
			remaining, err := s.returnable(ctx, tx, original)
			if err != nil {
				return err
			}
			byLine := make(map[int]domain.DocumentItem, len(original.Items))
			for _, item := range original.Items {
				byLine[item.Line] = item
			}

			exhausted := false
			for _, ret := range req.Items {
				orig, ok := byLine[ret.Line]
				if !ok || !ret.Quantity.IsPositive() {
					continue
				}
				left := remaining[ret.Line]
				if !left.IsPositive() {
					exhausted = true
					continue
				}
				qty := decimal.Min(ret.Quantity, left)
				remaining[ret.Line] = left.Sub(qty)

				line := orig.LineItem()
				line.Quantity = qty
				d.items = append(d.items, line)
				d.originalLines = append(d.originalLines, ret.Line)
			}
			if len(d.items) == 0 {
				if exhausted {
					return domain.ErrFullyCredited
				}
				return domain.ErrNoItems
			}
			if restock {
				d.stock = 1
			}
			return nil
		})
}

// returnable reports, per invoice line, the quantity earlier credit notes
// have not yet credited.
func (s *Service) returnable(ctx context.Context, tx *gorm.DB, original *domain.Document) (map[int]decimal.Decimal, error) {
	credited, err := s.repo.CreditedLines(ctx, tx, original.ID)
	if err != nil {
		return nil, err
	}
	remaining := make(map[int]decimal.Decimal, len(original.Items))
	for _, item := range original.Items {
		remaining[item.Line] = item.Quantity
	}
	for _, c := range credited {
		if left, ok := remaining[c.OriginalLine]; ok {
			remaining[c.OriginalLine] = left.Sub(c.Quantity)
		}
	}
	return remaining, nil
}

func (s *Service) CreateDebitNote(ctx context.Context, req domain.CreateDebitNoteRequest) (*domain.Document, error) {
	reason := domain.NormalizeReason(strings.ToUpper(strings.TrimSpace(req.Reason)), domain.DebitNoteReasons)
	return s.createNote(ctx, sequencedomain.SeriesDebitNote, req.OriginalInvoiceID, req.Date, reason, req.ReasonDetails,
		func(_ *gorm.DB, _ *domain.Document, d *draft) error {
			d.items = req.Items
			return nil
		})
}

// createNote locks the original invoice, lets build fill in the note's
// items and issues the note in one transaction. A credit note also settles
// its amount against the invoice balance.
func (s *Service) createNote(ctx context.Context, kind sequencedomain.SeriesKind, originalID string, date *time.Time, reason, details string, build func(tx *gorm.DB, original *domain.Document, d *draft) error) (*domain.Document, error) {
	id, err := parseID(originalID)
	if err != nil {
		return nil, err
	}
	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, err
	}

	var doc *domain.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		original, err := s.loadOriginalInvoice(ctx, tx, id)
		if err != nil {
			return err
		}

		d := draft{
			kind:   kind,
			status: domain.StatusActive,
			date:   s.day(date),
			buyer: buyer{
				customerID: original.CustomerID,
				name:       original.BuyerName,
				gstin:      original.BuyerGSTIN,
				stateCode:  original.BuyerStateCode,
				address:    original.BuyerAddress,
				email:      original.BuyerEmail,
			},
			discount:      decimal.Zero,
			original:      original,
			reason:        reason,
			reasonDetails: strings.TrimSpace(details),
		}
		if err := build(tx, original, &d); err != nil {
			return err
		}

		doc, err = s.issue(ctx, tx, company, d)
		if err != nil {
			return err
		}
		if kind != sequencedomain.SeriesCreditNote {
			return nil
		}
		original.CreditedAmount = original.CreditedAmount.Add(doc.GrandTotal)
		original.UpdatedAt = doc.CreatedAt
		original.Settle()
		return s.repo.UpdateSettlement(ctx, tx, original)
	})
	if err != nil {
		return nil, err
	}

	s.issued(ctx, doc)
	return doc, nil
}

// issue prices the draft, allocates its number inside tx and stores it.
// A rollback of tx releases the number.
func (s *Service) issue(ctx context.Context, tx *gorm.DB, company companydomain.Company, d draft) (*domain.Document, error) {
	catalog, err := s.fillFromCatalog(ctx, tx, d.items)
	if err != nil {
		return nil, err
	}
	items, err := normalizeItems(catalog.items)
	if err != nil {
		return nil, err
	}
	if d.discount.IsNegative() {
		return nil, domain.ErrInvalidDiscount
	}

	totals, err := s.engine.ComputeCart(items, company.StateCode, d.buyer.stateCode, d.discount)
	if err != nil {
		return nil, err
	}
	if d.discount.GreaterThan(totals.Subtotal.Add(totals.TotalTax)) {
		return nil, domain.ErrDiscountExceedsTotal
	}

	alloc, err := s.sequence.NextNumberTx(ctx, tx, sequencedomain.NextNumberRequest{
		Kind: d.kind,
		Date: d.date.In(s.loc),
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	doc := &domain.Document{
		ID:              s.genID.Generate(),
		Kind:            d.kind,
		Number:          alloc.Number,
		Date:            d.date,
		Status:          d.status,
		CustomerID:      d.buyer.customerID,
		BuyerName:       d.buyer.name,
		BuyerGSTIN:      d.buyer.gstin,
		BuyerStateCode:  d.buyer.stateCode,
		BuyerAddress:    d.buyer.address,
		BuyerEmail:      d.buyer.email,
		SellerStateCode: company.StateCode,
		IsInterState:    totals.IsInterState,
		Subtotal:        totals.Subtotal,
		CGSTTotal:       totals.CGSTTotal,
		SGSTTotal:       totals.SGSTTotal,
		IGSTTotal:       totals.IGSTTotal,
		TotalTax:        totals.TotalTax,
		Discount:        totals.Discount,
		GrandTotal:      totals.GrandTotal,
		PaymentMode:     d.paymentMode,
		Notes:           d.notes,
		ValidUntil:      d.validUntil,
		Reason:          d.reason,
		ReasonDetails:   d.reasonDetails,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if d.original != nil {
		id := d.original.ID
		doc.OriginalDocumentID = &id
		doc.OriginalNumber = d.original.Number
	}
	if doc.Kind == sequencedomain.SeriesInvoice {
		doc.Settle()
	}
	doc.Items = make([]domain.DocumentItem, 0, len(totals.Lines))
	for i, line := range totals.Lines {
		item := domain.NewDocumentItem(s.genID.Generate(), doc.ID, i+1, line, now)
		if i < len(d.originalLines) {
			item.OriginalLine = d.originalLines[i]
		}
		doc.Items = append(doc.Items, item)
	}

	if err := s.repo.Insert(ctx, tx, doc); err != nil {
		return nil, err
	}
	if err := s.moveStock(ctx, tx, doc, d, catalog.products); err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("document issued",
		zap.String("document_id", doc.ID.String()),
		zap.String("kind", string(doc.Kind)),
		zap.String("document_number", doc.Number),
		zap.Bool("inter_state", doc.IsInterState),
		zap.String("grand_total", doc.GrandTotal.StringFixed(2)),
	)
	return doc, nil
}

// openBalance records the amount taken at the counter against a new
// invoice. The receipt uses the invoice's payment mode, or CASH when the
// invoice is billed on credit.
func (s *Service) openBalance(ctx context.Context, tx *gorm.DB, doc *domain.Document, amountPaid *decimal.Decimal) error {
	paid := doc.GrandTotal
	if doc.PaymentMode == domain.PaymentModeCredit {
		paid = decimal.Zero
	}
	if amountPaid != nil {
		paid = amountPaid.Round(2)
	}
	if paid.IsNegative() || paid.GreaterThan(doc.GrandTotal) {
		return domain.ErrInvalidAmountPaid
	}
	if !paid.IsPositive() {
		return nil
	}

	mode := doc.PaymentMode
	if mode == domain.PaymentModeCredit {
		mode = domain.DefaultPaymentMode
	}
	date := doc.Date
	resp, err := s.payments.RecordTx(ctx, tx, paymentdomain.RecordRequest{
		InvoiceID: doc.ID.String(),
		Splits:    []paymentdomain.Split{{PaymentMode: mode, Amount: paid}},
		Date:      &date,
	})
	if err != nil {
		return err
	}
	doc.AmountPaid = resp.Invoice.AmountPaid
	doc.BalanceDue = resp.Invoice.BalanceDue
	doc.PaymentStatus = resp.Invoice.PaymentStatus
	doc.UpdatedAt = resp.Invoice.UpdatedAt
	return nil
}

func (s *Service) issued(ctx context.Context, doc *domain.Document) {
	s.metrics.RecordDocumentIssued(ctx, string(doc.Kind), doc.IsInterState)
}

func (s *Service) CancelInvoice(ctx context.Context, id string) (*domain.Document, error) {
	docID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc *domain.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, docID)
		if err != nil {
			return err
		}
		if current == nil || current.Kind != sequencedomain.SeriesInvoice {
			return domain.ErrNotFound
		}

		now := s.clock.Now().UTC()
		ok, err := s.repo.UpdateStatus(ctx, tx, docID, []domain.Status{domain.StatusIssued}, map[string]any{
			"status":       domain.StatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidStateTransition
		}
		if err := s.products.ReverseInvoiceTx(ctx, tx, docID, docID, current.Number); err != nil {
			return err
		}
		current.Status = domain.StatusCancelled
		current.CancelledAt = &now
		current.UpdatedAt = now
		doc = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("invoice cancelled",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_number", doc.Number),
	)
	return doc, nil
}

// quotationTransitions lists the statuses an operator may move a quotation
// from, keyed by target. EXPIRED and CONVERTED are set by the system only.
var quotationTransitions = map[domain.Status][]domain.Status{
	domain.StatusDraft:    {domain.StatusSent},
	domain.StatusSent:     {domain.StatusDraft},
	domain.StatusAccepted: {domain.StatusDraft, domain.StatusSent},
	domain.StatusRejected: {domain.StatusDraft, domain.StatusSent},
}

func (s *Service) UpdateQuotationStatus(ctx context.Context, id string, status domain.Status) (*domain.Document, error) {
	docID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	status = domain.Status(strings.ToUpper(strings.TrimSpace(string(status))))
	from, ok := quotationTransitions[status]
	if !ok {
		return nil, domain.ErrInvalidStatus
	}

	current, err := s.repo.FindByID(ctx, s.db, docID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.Kind != sequencedomain.SeriesQuotation {
		return nil, domain.ErrNotFound
	}
	if current.Status == status {
		return current, nil
	}

	now := s.clock.Now().UTC()
	updated, err := s.repo.UpdateStatus(ctx, s.db, docID, from, map[string]any{
		"status":     status,
		"updated_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrInvalidStateTransition
	}
	current.Status = status
	current.UpdatedAt = now
	return current, nil
}

// ConvertQuotation issues an invoice from a DRAFT, SENT or ACCEPTED
// quotation and marks the quotation CONVERTED in the same transaction.
func (s *Service) ConvertQuotation(ctx context.Context, req domain.ConvertQuotationRequest) (*domain.Document, error) {
	docID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	mode, err := normalizePaymentMode(req.PaymentMode)
	if err != nil {
		return nil, err
	}
	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, err
	}

	var invoice *domain.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quotation, err := s.repo.FindByID(ctx, tx, docID)
		if err != nil {
			return err
		}
		if quotation == nil || quotation.Kind != sequencedomain.SeriesQuotation {
			return domain.ErrNotFound
		}

		items := make([]taxdomain.LineItem, 0, len(quotation.Items))
		for _, item := range quotation.Items {
			items = append(items, item.LineItem())
		}
		invoice, err = s.issue(ctx, tx, company, draft{
			kind:   sequencedomain.SeriesInvoice,
			status: domain.StatusIssued,
			date:   s.day(req.Date),
			buyer: buyer{
				customerID: quotation.CustomerID,
				name:       quotation.BuyerName,
				gstin:      quotation.BuyerGSTIN,
				stateCode:  quotation.BuyerStateCode,
				address:    quotation.BuyerAddress,
				email:      quotation.BuyerEmail,
			},
			items:       items,
			discount:    quotation.Discount,
			paymentMode: mode,
			notes:       quotation.Notes,
			stock:       -1,
		})
		if err != nil {
			return err
		}
		if err := s.openBalance(ctx, tx, invoice, req.AmountPaid); err != nil {
			return err
		}

		ok, err := s.repo.UpdateStatus(ctx, tx, docID,
			[]domain.Status{domain.StatusDraft, domain.StatusSent, domain.StatusAccepted},
			map[string]any{
				"status":               domain.StatusConverted,
				"converted_invoice_id": invoice.ID,
				"updated_at":           invoice.CreatedAt,
			})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidStateTransition
		}

		if !req.SendEmail {
			return nil
		}
		recipient := firstNonEmpty(invoice.BuyerEmail, company.EmailRecipient)
		if recipient == "" {
			return domain.ErrNoRecipient
		}
		_, err = s.queue.EnqueueTx(ctx, tx, s.composeEmail(invoice, company, recipient))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.issued(ctx, invoice)
	logger.WithContext(ctx, s.log).Info("quotation converted",
		zap.String("quotation_id", docID.String()),
		zap.String("invoice_number", invoice.Number),
	)
	return invoice, nil
}

// ExpireQuotations marks DRAFT and SENT quotations whose validity ended
// before today as EXPIRED.
func (s *Service) ExpireQuotations(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	today := s.day(&now)
	n, err := s.repo.ExpireQuotations(ctx, s.db, today, now.UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.WithContext(ctx, s.log).Info("quotations expired", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Document, error) {
	docID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.FindByID(ctx, s.db, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{
		Status: domain.Status(strings.ToUpper(strings.TrimSpace(req.Status))),
	}
	if strings.TrimSpace(req.Kind) != "" {
		kind, ok := domain.KindFromString(req.Kind)
		if !ok {
			return domain.ListResponse{}, sequencedomain.ErrInvalidSeries
		}
		filter.Kind = kind
	}
	if strings.TrimSpace(req.CustomerID) != "" {
		id, err := parseID(req.CustomerID)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.CustomerID = &id
	}
	if req.From != nil {
		from := s.day(req.From)
		filter.From = &from
	}
	if req.To != nil {
		to := s.day(req.To).AddDate(0, 0, 1)
		filter.To = &to
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

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(doc *domain.Document) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        doc.ID.String(),
			CreatedAt: doc.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	docs := make([]domain.Document, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		docs = append(docs, *item)
	}
	resp := domain.ListResponse{Documents: docs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// loadOriginalInvoice locks the invoice a note is issued against.
func (s *Service) loadOriginalInvoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Document, error) {
	original, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, domain.ErrNotFound
	}
	if original.Kind != sequencedomain.SeriesInvoice {
		return nil, domain.ErrOriginalNotInvoice
	}
	if original.Status == domain.StatusCancelled {
		return nil, domain.ErrOriginalCancelled
	}
	return original, nil
}

func (s *Service) resolveBuyer(ctx context.Context, in domain.Buyer) (buyer, error) {
	if id := strings.TrimSpace(in.CustomerID); id != "" {
		customer, err := s.customers.GetByID(ctx, customerdomain.GetCustomerRequest{ID: id})
		if err != nil {
			if errors.Is(err, customerdomain.ErrNotFound) || errors.Is(err, customerdomain.ErrInvalidID) {
				return buyer{}, domain.ErrCustomerNotFound
			}
			return buyer{}, err
		}
		cid := customer.ID
		return buyer{
			customerID: &cid,
			name:       customer.Name,
			gstin:      customer.GSTIN,
			stateCode:  customer.StateCode,
			address:    customer.Address,
			email:      firstNonEmpty(strings.TrimSpace(in.Email), customer.Email),
		}, nil
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = domain.WalkInCustomerName
	}
	gstin := taxdomain.NormalizeGSTIN(in.GSTIN)
	if err := taxdomain.ValidateGSTIN(gstin); err != nil {
		return buyer{}, fmt.Errorf("%w: %v", domain.ErrInvalidBuyer, err)
	}
	stateCode := strings.TrimSpace(in.StateCode)
	if stateCode != "" && !taxdomain.IsValidStateCode(stateCode) {
		return buyer{}, fmt.Errorf("%w: %v", domain.ErrInvalidBuyer, taxdomain.ErrInvalidState)
	}
	if gstin != "" {
		fromGSTIN, _ := taxdomain.StateCodeFromGSTIN(gstin)
		if stateCode != "" && stateCode != fromGSTIN {
			return buyer{}, fmt.Errorf("%w: gstin registered in state %s", domain.ErrInvalidBuyer, fromGSTIN)
		}
		stateCode = fromGSTIN
	}
	return buyer{
		name:      name,
		gstin:     gstin,
		stateCode: stateCode,
		address:   strings.TrimSpace(in.Address),
		email:     strings.TrimSpace(in.Email),
	}, nil
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

func normalizeItems(items []taxdomain.LineItem) ([]taxdomain.LineItem, error) {
	if len(items) == 0 {
		return nil, domain.ErrNoItems
	}
	out := make([]taxdomain.LineItem, 0, len(items))
	for i, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return nil, fmt.Errorf("%w: line %d has no name", domain.ErrInvalidItem, i+1)
		}
		item.HSNCode = strings.TrimSpace(item.HSNCode)
		if err := taxdomain.ValidateHSN(item.HSNCode); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidItem, i+1, err)
		}
		if !item.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: line %d quantity must be positive", domain.ErrInvalidItem, i+1)
		}
		item.Unit = strings.ToUpper(strings.TrimSpace(item.Unit))
		if item.Unit == "" {
			item.Unit = "NOS"
		}
		out = append(out, item)
	}
	return out, nil
}

func normalizePaymentMode(mode string) (string, error) {
	mode = strings.ToUpper(strings.TrimSpace(mode))
	if mode == "" {
		return domain.DefaultPaymentMode, nil
	}
	if !slices.Contains(domain.PaymentModes, mode) {
		return "", domain.ErrInvalidPaymentMode
	}
	return mode, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
