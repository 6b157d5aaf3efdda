package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kanakku/internal/clock"
	companydomain "github.com/smallbiznis/kanakku/internal/company/domain"
	companyrepo "github.com/smallbiznis/kanakku/internal/company/repository"
	companyservice "github.com/smallbiznis/kanakku/internal/company/service"
	"github.com/smallbiznis/kanakku/internal/config"
	customerdomain "github.com/smallbiznis/kanakku/internal/customer/domain"
	customerrepo "github.com/smallbiznis/kanakku/internal/customer/repository"
	customerservice "github.com/smallbiznis/kanakku/internal/customer/service"
	"github.com/smallbiznis/kanakku/internal/document/domain"
	"github.com/smallbiznis/kanakku/internal/document/repository"
	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	emailqueuerepo "github.com/smallbiznis/kanakku/internal/emailqueue/repository"
	emailqueueservice "github.com/smallbiznis/kanakku/internal/emailqueue/service"
	paymentdomain "github.com/smallbiznis/kanakku/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/kanakku/internal/payment/repository"
	paymentservice "github.com/smallbiznis/kanakku/internal/payment/service"
	productdomain "github.com/smallbiznis/kanakku/internal/product/domain"
	productrepo "github.com/smallbiznis/kanakku/internal/product/repository"
	productservice "github.com/smallbiznis/kanakku/internal/product/service"
	"github.com/smallbiznis/kanakku/internal/providers/pdf"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	sequencerepo "github.com/smallbiznis/kanakku/internal/sequence/repository"
	sequenceservice "github.com/smallbiznis/kanakku/internal/sequence/service"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	taxservice "github.com/smallbiznis/kanakku/internal/tax/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maharashtraGSTIN = "27AAPFU0939F1ZV"

type fixture struct {
	db        *gorm.DB
	clock     *clock.FakeClock
	docs      domain.Service
	queue     emailqueuedomain.Service
	company   companydomain.Service
	customers customerdomain.Service
	products  productdomain.Service
	payments  paymentdomain.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&domain.Document{},
		&domain.DocumentItem{},
		&sequencedomain.DocumentSeries{},
		&emailqueuedomain.EmailJob{},
		&companydomain.Company{},
		&customerdomain.Customer{},
		&productdomain.Product{},
		&productdomain.StockLog{},
		&paymentdomain.InvoicePayment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, time.June, 10, 6, 30, 0, 0, time.UTC))
	cfg := config.Config{Timezone: "Asia/Kolkata"}
	log := zap.NewNop()
	docRepo := repository.Provide()

	seq := sequenceservice.New(sequenceservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Cfg:       cfg,
		Numbering: config.NewStaticNumberingConfigHolder(config.DefaultNumberingConfig()),
		Clock:     clk,
		Repo:      sequencerepo.Provide(),
		Issued:    repository.ProvideIssuedNumbers(docRepo),
	})
	queue := emailqueueservice.New(emailqueueservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Cfg:   cfg,
		Clock: clk,
		Repo:  emailqueuerepo.Provide(),
	})
	company := companyservice.New(companyservice.Params{DB: db, Log: log, Clock: clk, Repo: companyrepo.Provide()})
	customers := customerservice.New(customerservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: customerrepo.Provide()})
	products := productservice.New(productservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: productrepo.Provide()})
	payments := paymentservice.New(paymentservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Cfg:       cfg,
		Clock:     clk,
		Repo:      paymentrepo.Provide(),
		Documents: docRepo,
	})

	docs := New(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Cfg:       cfg,
		Clock:     clk,
		Repo:      docRepo,
		Engine:    taxservice.NewEngine(),
		Sequence:  seq,
		Queue:     queue,
		Company:   company,
		Customers: customers,
		Products:  products,
		Payments:  payments,
		PDF:       pdf.New(),
	})

	_, err = company.Update(context.Background(), companydomain.UpdateRequest{
		Name:         "Kerala Traders",
		AddressLine1: "MG Road",
		City:         "Kochi",
		StateCode:    "32",
	})
	require.NoError(t, err)

	return &fixture{db: db, clock: clk, docs: docs, queue: queue, company: company, customers: customers, products: products, payments: payments}
}

func bracket(qty int64) taxdomain.LineItem {
	return taxdomain.LineItem{
		Name:     "Steel bracket",
		HSNCode:  "7326",
		Quantity: decimal.NewFromInt(qty),
		Unit:     "nos",
		UnitRate: decimal.NewFromInt(500),
		GSTRate:  decimal.NewFromInt(18),
	}
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msg ...any) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s got %s %v", want, got, msg)
}

func TestCreateInvoiceIntraState(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items: []taxdomain.LineItem{bracket(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/0001", doc.Number)
	assert.Equal(t, domain.StatusIssued, doc.Status)
	assert.Equal(t, domain.WalkInCustomerName, doc.BuyerName)
	assert.Equal(t, "CASH", doc.PaymentMode)
	assert.False(t, doc.IsInterState)
	assertAmount(t, "1000", doc.Subtotal)
	assertAmount(t, "90", doc.CGSTTotal)
	assertAmount(t, "90", doc.SGSTTotal)
	assertAmount(t, "0", doc.IGSTTotal)
	assertAmount(t, "1180", doc.GrandTotal)

	stored, err := f.docs.Get(ctx, doc.ID.String())
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "NOS", stored.Items[0].Unit)
	assertAmount(t, "1180", stored.GrandTotal)
	assertAmount(t, "9", stored.Items[0].CGSTRate)
}

func TestCreateInvoiceInterStateCustomer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customer, err := f.customers.Create(ctx, customerdomain.CreateCustomerRequest{
		Name:  "Mumbai Distributors",
		Email: "accounts@mumbai.example",
		GSTIN: maharashtraGSTIN,
	})
	require.NoError(t, err)

	doc, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Buyer: domain.Buyer{CustomerID: customer.ID.String()},
		Items: []taxdomain.LineItem{bracket(2)},
	})
	require.NoError(t, err)
	assert.True(t, doc.IsInterState)
	assert.Equal(t, "27", doc.BuyerStateCode)
	assert.Equal(t, maharashtraGSTIN, doc.BuyerGSTIN)
	assertAmount(t, "180", doc.IGSTTotal)
	assertAmount(t, "0", doc.CGSTTotal)
	assertAmount(t, "1180", doc.GrandTotal)
	require.NotNil(t, doc.CustomerID)
	assert.Equal(t, customer.ID, *doc.CustomerID)

	_, err = f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Buyer: domain.Buyer{CustomerID: "123"},
		Items: []taxdomain.LineItem{bracket(1)},
	})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestCreateInvoiceRejectsWithoutConsumingNumber(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items:    []taxdomain.LineItem{bracket(2)},
		Discount: decimal.NewFromInt(1181),
	})
	assert.ErrorIs(t, err, domain.ErrDiscountExceedsTotal)

	_, err = f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items:     []taxdomain.LineItem{bracket(2)},
		SendEmail: true,
	})
	assert.ErrorIs(t, err, domain.ErrNoRecipient)

	bad := bracket(1)
	bad.HSNCode = "12A"
	_, err = f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{Items: []taxdomain.LineItem{bad}})
	assert.ErrorIs(t, err, domain.ErrInvalidItem)

	bad = bracket(1)
	bad.GSTRate = decimal.NewFromInt(7)
	_, err = f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{Items: []taxdomain.LineItem{bad}})
	assert.ErrorIs(t, err, taxdomain.ErrInvalidInput)

	_, err = f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{})
	assert.ErrorIs(t, err, domain.ErrNoItems)

	doc, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items:    []taxdomain.LineItem{bracket(2)},
		Discount: decimal.NewFromInt(1180),
	})
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/0001", doc.Number)
	assertAmount(t, "0", doc.GrandTotal)
}

func TestCreateInvoiceQueuesEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.company.Update(ctx, companydomain.UpdateRequest{
		Name:              "Kerala Traders",
		StateCode:         "32",
		AutoEmailInvoices: true,
		EmailRecipient:    "books@kerala.example",
	})
	require.NoError(t, err)

	doc, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items: []taxdomain.LineItem{bracket(2)},
	})
	require.NoError(t, err)

	jobs, err := f.queue.List(ctx, emailqueuedomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, jobs.Jobs, 1)
	job := jobs.Jobs[0]
	assert.Equal(t, "books@kerala.example", job.Recipient)
	assert.Equal(t, "Invoice INV/2024-25/0001 from Kerala Traders", job.Subject)
	assert.Equal(t, emailqueuedomain.AttachmentDocumentPDF, job.AttachmentKind)
	assert.Equal(t, doc.ID.String(), job.AttachmentRef)
	assert.Contains(t, job.TextBody, "INV/2024-25/0001")
	assert.Contains(t, job.TextBody, "One Thousand One Hundred Eighty Rupees Only")
	assert.NotContains(t, job.TextBody, "<")

	explicit, err := f.docs.EmailDocument(ctx, domain.EmailRequest{ID: doc.ID.String(), Recipient: "buyer@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", explicit.Recipient)
}

func TestQuotationLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	q, err := f.docs.CreateQuotation(ctx, domain.CreateQuotationRequest{
		Items:    []taxdomain.LineItem{bracket(3)},
		Discount: decimal.NewFromInt(70),
	})
	require.NoError(t, err)
	assert.Equal(t, "QTN/2024-25/0001", q.Number)
	assert.Equal(t, domain.StatusDraft, q.Status)
	require.NotNil(t, q.ValidUntil)
	assert.Equal(t, 30*24*time.Hour, q.ValidUntil.Sub(q.Date))

	sent, err := f.docs.UpdateQuotationStatus(ctx, q.ID.String(), "sent")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)

	_, err = f.docs.UpdateQuotationStatus(ctx, q.ID.String(), domain.StatusConverted)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	invoice, err := f.docs.ConvertQuotation(ctx, domain.ConvertQuotationRequest{ID: q.ID.String(), PaymentMode: "upi"})
	require.NoError(t, err)
	assert.Equal(t, sequencedomain.SeriesInvoice, invoice.Kind)
	assert.Equal(t, "INV/2024-25/0001", invoice.Number)
	assert.Equal(t, "UPI", invoice.PaymentMode)
	assertAmount(t, "1700", invoice.GrandTotal)

	converted, err := f.docs.Get(ctx, q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConverted, converted.Status)
	require.NotNil(t, converted.ConvertedInvoiceID)
	assert.Equal(t, invoice.ID, *converted.ConvertedInvoiceID)

	_, err = f.docs.ConvertQuotation(ctx, domain.ConvertQuotationRequest{ID: q.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	// The failed conversion rolled back its invoice number.
	next, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{Items: []taxdomain.LineItem{bracket(1)}})
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/0002", next.Number)
}

func TestExpireQuotations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	short, err := f.docs.CreateQuotation(ctx, domain.CreateQuotationRequest{
		Items:        []taxdomain.LineItem{bracket(1)},
		ValidityDays: 1,
	})
	require.NoError(t, err)
	accepted, err := f.docs.CreateQuotation(ctx, domain.CreateQuotationRequest{
		Items:        []taxdomain.LineItem{bracket(1)},
		ValidityDays: 1,
		Status:       domain.StatusSent,
	})
	require.NoError(t, err)
	_, err = f.docs.UpdateQuotationStatus(ctx, accepted.ID.String(), domain.StatusAccepted)
	require.NoError(t, err)

	n, err := f.docs.ExpireQuotations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(48 * time.Hour)
	n, err = f.docs.ExpireQuotations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.docs.Get(ctx, short.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)
	got, err = f.docs.Get(ctx, accepted.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, got.Status)
}

func TestCreditNoteClampsReturnedQuantity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	invoice, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items: []taxdomain.LineItem{bracket(2)},
	})
	require.NoError(t, err)

	note, err := f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: invoice.ID.String(),
		Items: []domain.ReturnItem{
			{Line: 1, Quantity: decimal.NewFromInt(5)},
			{Line: 9, Quantity: decimal.NewFromInt(1)},
		},
		Reason: "lost in transit",
	})
	require.NoError(t, err)
	assert.Equal(t, "CN/2024-25/0001", note.Number)
	assert.Equal(t, domain.ReasonOther, note.Reason)
	assert.Equal(t, invoice.Number, note.OriginalNumber)
	require.Len(t, note.Items, 1)
	assertAmount(t, "2", note.Items[0].Quantity)
	assertAmount(t, "1180", note.GrandTotal)

	_, err = f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: invoice.ID.String(),
		Items:             []domain.ReturnItem{{Line: 1, Quantity: decimal.Zero}},
	})
	assert.ErrorIs(t, err, domain.ErrNoItems)

	_, err = f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: note.ID.String(),
		Items:             []domain.ReturnItem{{Line: 1, Quantity: decimal.NewFromInt(1)}},
	})
	assert.ErrorIs(t, err, domain.ErrOriginalNotInvoice)
}

func TestDebitNote(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	invoice, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Buyer: domain.Buyer{Name: "Mumbai Distributors", GSTIN: maharashtraGSTIN},
		Items: []taxdomain.LineItem{bracket(2)},
	})
	require.NoError(t, err)

	note, err := f.docs.CreateDebitNote(ctx, domain.CreateDebitNoteRequest{
		OriginalInvoiceID: invoice.ID.String(),
		Items: []taxdomain.LineItem{{
			Name:     "Freight",
			HSNCode:  "9965",
			Quantity: decimal.NewFromInt(1),
			UnitRate: decimal.NewFromInt(100),
			GSTRate:  decimal.NewFromInt(5),
		}},
		Reason: "additional_charges",
	})
	require.NoError(t, err)
	assert.Equal(t, "DN/2024-25/0001", note.Number)
	assert.Equal(t, domain.ReasonAdditionalCharges, note.Reason)
	assert.True(t, note.IsInterState)
	assertAmount(t, "105", note.GrandTotal)
}

func TestCancelInvoiceAndSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	kept, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{Items: []taxdomain.LineItem{bracket(2)}})
	require.NoError(t, err)
	cancelled, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{Items: []taxdomain.LineItem{bracket(4)}})
	require.NoError(t, err)
	_, err = f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Buyer: domain.Buyer{GSTIN: maharashtraGSTIN},
		Items: []taxdomain.LineItem{bracket(1), {
			Name:     "Manual",
			Quantity: decimal.NewFromInt(1),
			UnitRate: decimal.NewFromInt(200),
			GSTRate:  decimal.NewFromInt(5),
		}},
	})
	require.NoError(t, err)

	got, err := f.docs.CancelInvoice(ctx, cancelled.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)

	_, err = f.docs.CancelInvoice(ctx, cancelled.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: cancelled.ID.String(),
		Items:             []domain.ReturnItem{{Line: 1, Quantity: decimal.NewFromInt(1)}},
	})
	assert.ErrorIs(t, err, domain.ErrOriginalCancelled)

	now := f.clock.Now()
	summary, err := f.docs.GSTSummary(ctx, now, now)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.InvoiceCount)
	require.Len(t, summary.Rates, 2)
	assertAmount(t, "5", summary.Rates[0].GSTRate)
	assertAmount(t, "10", summary.Rates[0].IGST)
	assertAmount(t, "18", summary.Rates[1].GSTRate)
	assertAmount(t, "1500", summary.Rates[1].TaxableValue)
	assertAmount(t, "90", summary.Rates[1].CGST)
	assertAmount(t, "90", summary.Rates[1].IGST)
	assertAmount(t, "1700", summary.TaxableValue)
	assertAmount(t, "280", summary.TotalTax)

	_, err = f.docs.GSTSummary(ctx, now, now.AddDate(0, 0, -2))
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)

	list, err := f.docs.List(ctx, domain.ListRequest{Kind: "invoice", Status: "issued"})
	require.NoError(t, err)
	ids := []snowflake.ID{}
	for _, doc := range list.Documents {
		ids = append(ids, doc.ID)
	}
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, kept.ID)
	assert.NotContains(t, ids, cancelled.ID)
}

func TestRenderPDFAndResolveAttachment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{Items: []taxdomain.LineItem{bracket(2)}})
	require.NoError(t, err)

	rendered, err := f.docs.RenderPDF(ctx, doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "inv-2024-25-0001.pdf", rendered.Filename)
	assert.Equal(t, "%PDF", string(rendered.Content[:4]))

	resolver := NewAttachmentResolver(AttachmentParams{Documents: f.docs})
	att, err := resolver.Resolve(ctx, emailqueuedomain.AttachmentDocumentPDF, doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", att.ContentType)

	none, err := resolver.Resolve(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = resolver.Resolve(ctx, "spreadsheet", "1")
	assert.ErrorIs(t, err, emailqueuedomain.ErrUnknownAttachment)
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText(`<html><head><style>p { color: red; }</style></head>
<body><h2>Invoice  INV/1</h2><p>Dear <b>Asha</b>,</p><table><tr><td>Item</td><td>2 NOS</td></tr></table><p>Regards,<br>Shop</p></body></html>`)
	assert.Equal(t, "Invoice INV/1\n\nDear Asha,\n\nItem\t2 NOS\n\nRegards,\nShop", got)
}

func TestCreditNotesNeverExceedInvoicedQuantity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	invoice, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items: []taxdomain.LineItem{bracket(2)},
	})
	require.NoError(t, err)
	assertAmount(t, "1180", invoice.GrandTotal)

	returnAll := domain.CreateCreditNoteRequest{
		OriginalInvoiceID: invoice.ID.String(),
		Items:             []domain.ReturnItem{{Line: 1, Quantity: decimal.NewFromInt(2)}},
		Reason:            domain.ReasonReturn,
	}
	first, err := f.docs.CreateCreditNote(ctx, returnAll)
	require.NoError(t, err)
	assertAmount(t, "1180", first.GrandTotal)
	require.Len(t, first.Items, 1)
	assert.Equal(t, 1, first.Items[0].OriginalLine)

	for i := 0; i < 2; i++ {
		_, err = f.docs.CreateCreditNote(ctx, returnAll)
		assert.ErrorIs(t, err, domain.ErrFullyCredited)
	}

	notes, err := f.docs.List(ctx, domain.ListRequest{Kind: "credit_note"})
	require.NoError(t, err)
	require.Len(t, notes.Documents, 1)
	credited := decimal.Zero
	for _, note := range notes.Documents {
		credited = credited.Add(note.GrandTotal)
	}
	assertAmount(t, "1180", credited)

	stored, err := f.docs.Get(ctx, invoice.ID.String())
	require.NoError(t, err)
	assertAmount(t, "1180", stored.CreditedAmount)
	assertAmount(t, "0", stored.BalanceDue)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
}

func TestCreditNotesClampToRemainingQuantity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	invoice, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items:       []taxdomain.LineItem{bracket(3), bracket(1)},
		PaymentMode: "credit",
	})
	require.NoError(t, err)
	assertAmount(t, "2360", invoice.GrandTotal)

	first, err := f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: invoice.ID.String(),
		Items:             []domain.ReturnItem{{Line: 1, Quantity: decimal.NewFromInt(2)}},
	})
	require.NoError(t, err)
	assertAmount(t, "1180", first.GrandTotal)

	// Line 1 has one unit left; repeated entries in one request share it.
	second, err := f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: invoice.ID.String(),
		Items: []domain.ReturnItem{
			{Line: 1, Quantity: decimal.NewFromInt(2)},
			{Line: 1, Quantity: decimal.NewFromInt(2)},
		},
	})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assertAmount(t, "1", second.Items[0].Quantity)
	assertAmount(t, "590", second.GrandTotal)

	_, err = f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: invoice.ID.String(),
		Items:             []domain.ReturnItem{{Line: 1, Quantity: decimal.NewFromInt(1)}},
	})
	assert.ErrorIs(t, err, domain.ErrFullyCredited)

	// Line 2 is untouched and still returnable.
	third, err := f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: invoice.ID.String(),
		Items: []domain.ReturnItem{
			{Line: 1, Quantity: decimal.NewFromInt(1)},
			{Line: 2, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)
	require.Len(t, third.Items, 1)
	assert.Equal(t, 2, third.Items[0].OriginalLine)

	stored, err := f.docs.Get(ctx, invoice.ID.String())
	require.NoError(t, err)
	assertAmount(t, "2360", stored.CreditedAmount)
	assertAmount(t, "0", stored.BalanceDue)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
}

func TestInvoiceSettlement(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cash, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items: []taxdomain.LineItem{bracket(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, cash.PaymentStatus)
	assertAmount(t, "1180", cash.AmountPaid)
	assertAmount(t, "0", cash.BalanceDue)

	received, err := f.payments.List(ctx, cash.ID.String())
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "CASH", received[0].PaymentMode)
	assertAmount(t, "1180", received[0].Amount)

	onAccount, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items:       []taxdomain.LineItem{bracket(2)},
		PaymentMode: "credit",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentUnpaid, onAccount.PaymentStatus)
	assertAmount(t, "0", onAccount.AmountPaid)
	assertAmount(t, "1180", onAccount.BalanceDue)

	advance := decimal.NewFromInt(200)
	partial, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items:       []taxdomain.LineItem{bracket(1)},
		PaymentMode: "upi",
		AmountPaid:  &advance,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPartial, partial.PaymentStatus)
	assertAmount(t, "390", partial.BalanceDue)

	tooMuch := decimal.NewFromInt(1181)
	_, err = f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items:      []taxdomain.LineItem{bracket(2)},
		AmountPaid: &tooMuch,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmountPaid)

	outstanding, err := f.payments.Outstanding(ctx, paymentdomain.OutstandingRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, outstanding.TotalCount)
	assertAmount(t, "1570", outstanding.TotalDue)

	// A credit note reduces what the buyer still owes.
	_, err = f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: onAccount.ID.String(),
		Items:             []domain.ReturnItem{{Line: 1, Quantity: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)
	stored, err := f.docs.Get(ctx, onAccount.ID.String())
	require.NoError(t, err)
	assertAmount(t, "590", stored.CreditedAmount)
	assertAmount(t, "590", stored.BalanceDue)
	assert.Equal(t, domain.PaymentPartial, stored.PaymentStatus)

	resp, err := f.payments.Record(ctx, paymentdomain.RecordRequest{
		InvoiceID: onAccount.ID.String(),
		Splits:    []paymentdomain.Split{{PaymentMode: "upi", Amount: decimal.NewFromInt(590)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, resp.Invoice.PaymentStatus)

	outstanding, err = f.payments.Outstanding(ctx, paymentdomain.OutstandingRequest{})
	require.NoError(t, err)
	require.Len(t, outstanding.Invoices, 1)
	assert.Equal(t, partial.ID, outstanding.Invoices[0].ID)
}

func TestInvoiceMovesCatalogStock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	product, err := f.products.Create(ctx, productdomain.CreateRequest{
		Name:     "Steel bracket",
		Barcode:  "8901234567890",
		HSNCode:  "7326",
		Price:    decimal.NewFromInt(500),
		GSTRate:  decimal.NewFromInt(18),
		StockQty: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	invoice, err := f.docs.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		Items: []taxdomain.LineItem{{ProductRef: "8901234567890", Quantity: decimal.NewFromInt(3)}},
	})
	require.NoError(t, err)
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, "Steel bracket", invoice.Items[0].Name)
	assert.Equal(t, "7326", invoice.Items[0].HSNCode)
	assert.Equal(t, product.ID.String(), invoice.Items[0].ProductRef)
	assertAmount(t, "1770", invoice.GrandTotal)

	stocked, err := f.products.Get(ctx, product.ID.String())
	require.NoError(t, err)
	assertAmount(t, "7", stocked.StockQty)

	_, err = f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: invoice.ID.String(),
		Items:             []domain.ReturnItem{{Line: 1, Quantity: decimal.NewFromInt(1)}},
		Reason:            domain.ReasonReturn,
	})
	require.NoError(t, err)
	stocked, err = f.products.Get(ctx, product.ID.String())
	require.NoError(t, err)
	assertAmount(t, "8", stocked.StockQty)

	// A price correction does not put goods back.
	_, err = f.docs.CreateCreditNote(ctx, domain.CreateCreditNoteRequest{
		OriginalInvoiceID: invoice.ID.String(),
		Items:             []domain.ReturnItem{{Line: 1, Quantity: decimal.NewFromInt(1)}},
		Reason:            domain.ReasonPriceAdjustment,
	})
	require.NoError(t, err)
	stocked, err = f.products.Get(ctx, product.ID.String())
	require.NoError(t, err)
	assertAmount(t, "8", stocked.StockQty)

	_, err = f.docs.CancelInvoice(ctx, invoice.ID.String())
	require.NoError(t, err)
	stocked, err = f.products.Get(ctx, product.ID.String())
	require.NoError(t, err)
	assertAmount(t, "10", stocked.StockQty)

	history, err := f.products.StockHistory(ctx, product.ID.String())
	require.NoError(t, err)
	reasons := make([]string, 0, len(history))
	for _, entry := range history {
		reasons = append(reasons, entry.Reason)
	}
	assert.ElementsMatch(t, []string{
		productdomain.ReasonOpening,
		productdomain.ReasonSale,
		productdomain.ReasonReturn,
		productdomain.ReasonInvoiceCancelled,
	}, reasons)
}
