package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	companydomain "github.com/smallbiznis/kanakku/internal/company/domain"
	"github.com/smallbiznis/kanakku/internal/config"
	customerdomain "github.com/smallbiznis/kanakku/internal/customer/domain"
	documentdomain "github.com/smallbiznis/kanakku/internal/document/domain"
	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	paymentdomain "github.com/smallbiznis/kanakku/internal/payment/domain"
	productdomain "github.com/smallbiznis/kanakku/internal/product/domain"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	taxservice "github.com/smallbiznis/kanakku/internal/tax/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompanyService struct {
	company companydomain.Company
}

func (f *fakeCompanyService) Get(ctx context.Context) (companydomain.Company, error) {
	return f.company, nil
}

func (f *fakeCompanyService) Update(ctx context.Context, req companydomain.UpdateRequest) (companydomain.Company, error) {
	if req.Name == "" {
		return companydomain.Company{}, companydomain.ErrInvalidName
	}
	f.company.Name = req.Name
	return f.company, nil
}

// The fakes below embed the domain interface; calling a method that is not
// overridden panics, which keeps each test honest about what it touches.

type fakeCustomerService struct {
	customerdomain.Service
}

type fakeDocumentService struct {
	documentdomain.Service

	created    *documentdomain.CreateInvoiceRequest
	createErr  error
	docs       map[string]*documentdomain.Document
	pdf        *documentdomain.RenderedPDF
	summaryArg [2]time.Time
}

func (f *fakeDocumentService) CreateInvoice(ctx context.Context, req documentdomain.CreateInvoiceRequest) (*documentdomain.Document, error) {
	f.created = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &documentdomain.Document{ID: snowflake.ID(7), Number: "INV/2024-25/0001", Kind: sequencedomain.SeriesInvoice}, nil
}

func (f *fakeDocumentService) Get(ctx context.Context, id string) (*documentdomain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, documentdomain.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocumentService) CancelInvoice(ctx context.Context, id string) (*documentdomain.Document, error) {
	return nil, documentdomain.ErrInvalidStateTransition
}

func (f *fakeDocumentService) RenderPDF(ctx context.Context, id string) (*documentdomain.RenderedPDF, error) {
	if f.pdf == nil {
		return nil, documentdomain.ErrRendererUnavailable
	}
	return f.pdf, nil
}

func (f *fakeDocumentService) GSTSummary(ctx context.Context, from, to time.Time) (*documentdomain.GSTSummary, error) {
	f.summaryArg = [2]time.Time{from, to}
	return &documentdomain.GSTSummary{}, nil
}

type fakeProductService struct {
	productdomain.Service
	adjusted *productdomain.AdjustStockRequest
}

func (f *fakeProductService) FindByBarcode(ctx context.Context, barcode string) (*productdomain.Product, error) {
	if barcode != "8901234567890" {
		return nil, productdomain.ErrNotFound
	}
	return &productdomain.Product{ID: snowflake.ID(11), Name: "Basmati rice 5kg", Barcode: barcode}, nil
}

func (f *fakeProductService) LowStock(ctx context.Context) ([]productdomain.Product, error) {
	return []productdomain.Product{{ID: snowflake.ID(11), StockQty: decimal.NewFromInt(2), LowStockAlert: decimal.NewFromInt(5)}}, nil
}

func (f *fakeProductService) AdjustStock(ctx context.Context, req productdomain.AdjustStockRequest) (*productdomain.AdjustStockResponse, error) {
	f.adjusted = &req
	if req.Delta.IsNegative() {
		return nil, productdomain.ErrInsufficientStock
	}
	return &productdomain.AdjustStockResponse{}, nil
}

type fakePaymentService struct {
	paymentdomain.Service
	recorded *paymentdomain.RecordRequest
	customer string
}

func (f *fakePaymentService) Record(ctx context.Context, req paymentdomain.RecordRequest) (*paymentdomain.RecordResponse, error) {
	f.recorded = &req
	total := decimal.Zero
	for _, split := range req.Splits {
		total = total.Add(split.Amount)
	}
	if total.GreaterThan(decimal.NewFromInt(1180)) {
		return nil, paymentdomain.ErrOverpayment
	}
	return &paymentdomain.RecordResponse{}, nil
}

func (f *fakePaymentService) Outstanding(ctx context.Context, req paymentdomain.OutstandingRequest) (*paymentdomain.OutstandingResponse, error) {
	f.customer = req.CustomerID
	return &paymentdomain.OutstandingResponse{TotalDue: decimal.NewFromInt(590), TotalCount: 1}, nil
}

type fakeSequenceService struct {
	sequencedomain.Service
	lastReq sequencedomain.NextNumberRequest
}

func (f *fakeSequenceService) Preview(ctx context.Context, req sequencedomain.NextNumberRequest) (string, error) {
	f.lastReq = req
	return "CN/2024-25/0003", nil
}

type fakeEmailQueue struct {
	emailqueuedomain.Service
	deleted string
}

func (f *fakeEmailQueue) RetryManually(ctx context.Context, req emailqueuedomain.RetryRequest) (*emailqueuedomain.RetryResult, error) {
	return nil, emailqueuedomain.ErrInvalidStateTransition
}

func (f *fakeEmailQueue) Delete(ctx context.Context, id string) error {
	f.deleted = id
	return nil
}

type testServer struct {
	router    *gin.Engine
	documents *fakeDocumentService
	products  *fakeProductService
	payments  *fakePaymentService
	sequence  *fakeSequenceService
	queue     *fakeEmailQueue
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	documents := &fakeDocumentService{docs: map[string]*documentdomain.Document{}}
	sequence := &fakeSequenceService{}
	queue := &fakeEmailQueue{}
	products := &fakeProductService{}
	payments := &fakePaymentService{}
	NewServer(ServerParams{
		Gin:         router,
		Cfg:         config.Config{Timezone: "Asia/Kolkata"},
		TaxEngine:   taxservice.NewEngine(),
		CompanySvc:  &fakeCompanyService{company: companydomain.Company{Name: "Kanakku Traders", StateCode: "32"}},
		CustomerSvc: &fakeCustomerService{},
		DocumentSvc: documents,
		ProductSvc:  products,
		PaymentSvc:  payments,
		SequenceSvc: sequence,
		EmailQueue:  queue,
	})
	return testServer{router: router, documents: documents, products: products, payments: payments, sequence: sequence, queue: queue}
}

func (ts testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body == "" {
		reader = &bytes.Buffer{}
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out.Error
}

func TestLookupGSTIN(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/tax/gstin/27aapfu0939f1zv", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Data gstinLookupResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "27AAPFU0939F1ZV", out.Data.GSTIN)
	assert.Equal(t, "27", out.Data.StateCode)
	assert.Equal(t, "AAPFU0939F", out.Data.PAN)
	assert.NotEmpty(t, out.Data.StateName)

	resp = ts.do(http.MethodGet, "/api/tax/gstin/27AAPFU0939F1ZX", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_gstin", payload.Errors[0].Code)
	assert.Equal(t, "gstin", payload.Errors[0].Field)
}

func TestPreviewTaxUsesCompanyStateForSplit(t *testing.T) {
	ts := newTestServer(t)

	body := `{"items":[{"name":"Widget","quantity":"2","unit":"NOS","unit_rate":"500","gst_rate":"18"}]}`
	resp := ts.do(http.MethodPost, "/api/tax/preview", body)
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Data struct {
			Subtotal     decimal.Decimal `json:"subtotal"`
			CGSTTotal    decimal.Decimal `json:"cgst_total"`
			IGSTTotal    decimal.Decimal `json:"igst_total"`
			GrandTotal   decimal.Decimal `json:"grand_total"`
			IsInterState bool            `json:"is_inter_state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.False(t, out.Data.IsInterState)
	assert.True(t, out.Data.CGSTTotal.Equal(decimal.NewFromInt(90)))
	assert.True(t, out.Data.GrandTotal.Equal(decimal.NewFromInt(1180)))

	interState := `{"buyer_gstin":"27AAPFU0939F1ZV","items":[{"name":"Widget","quantity":"2","unit":"NOS","unit_rate":"500","gst_rate":"18"}]}`
	resp = ts.do(http.MethodPost, "/api/tax/preview", interState)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.True(t, out.Data.IsInterState)
	assert.True(t, out.Data.IGSTTotal.Equal(decimal.NewFromInt(180)))

	mismatch := `{"buyer_gstin":"27AAPFU0939F1ZV","buyer_state_code":"29","items":[]}`
	resp = ts.do(http.MethodPost, "/api/tax/preview", mismatch)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "gstin_state_mismatch", decodeError(t, resp).Errors[0].Code)
}

func TestCreateInvoiceParsesPlainDateInBusinessTimezone(t *testing.T) {
	ts := newTestServer(t)

	body := `{"buyer":{"name":"Walk-in"},"items":[{"name":"Widget","quantity":1,"unit_rate":100,"gst_rate":5}],"date":"2024-06-10","payment_mode":"UPI"}`
	resp := ts.do(http.MethodPost, "/api/invoices", body)
	require.Equal(t, http.StatusCreated, resp.Code)

	require.NotNil(t, ts.documents.created)
	req := ts.documents.created
	require.NotNil(t, req.Date)
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	assert.True(t, req.Date.Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, ist)))
	assert.Equal(t, "UPI", req.PaymentMode)
	require.Len(t, req.Items, 1)
	assert.True(t, req.Items[0].GSTRate.Equal(decimal.NewFromInt(5)))

	resp = ts.do(http.MethodPost, "/api/invoices", `{"items":[],"date":"10/06/2024"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_date", decodeError(t, resp).Errors[0].Code)
}

func TestDocumentErrorsMapToStatusCodes(t *testing.T) {
	ts := newTestServer(t)

	ts.documents.createErr = documentdomain.ErrDiscountExceedsTotal
	resp := ts.do(http.MethodPost, "/api/invoices", `{"items":[]}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)
	assert.Equal(t, "discount", payload.Errors[0].Field)

	resp = ts.do(http.MethodGet, "/api/documents/404", "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.do(http.MethodPost, "/api/invoices/7/cancel", "")
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "invalid state transition", decodeError(t, resp).Message)

	resp = ts.do(http.MethodGet, "/api/documents/7/pdf", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)

	resp = ts.do(http.MethodGet, "/api/nothing-here", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDownloadDocumentPDF(t *testing.T) {
	ts := newTestServer(t)
	ts.documents.pdf = &documentdomain.RenderedPDF{Filename: "inv-2024-25-0001.pdf", Content: []byte("%PDF-1.4")}

	resp := ts.do(http.MethodGet, "/api/documents/7/pdf", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="inv-2024-25-0001.pdf"`, resp.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4", resp.Body.String())
}

func TestPreviewDocumentNumberAcceptsHyphenatedKind(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/sequences/credit-note/preview", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, sequencedomain.SeriesCreditNote, ts.sequence.lastReq.Kind)
	assert.Contains(t, resp.Body.String(), "CN/2024-25/0003")

	resp = ts.do(http.MethodGet, "/api/sequences/receipt/preview", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGSTSummaryRequiresRange(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/reports/gst-summary?from=2024-04-01", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.do(http.MethodGet, "/api/reports/gst-summary?from=2024-04-01&to=2024-06-30", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 4, int(ts.documents.summaryArg[0].Month()))
	assert.Equal(t, 30, ts.documents.summaryArg[1].Day())
}

func TestEmailQueueRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/email-queue/12/retry", "")
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = ts.do(http.MethodDelete, "/api/email-queue/12", "")
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "12", ts.queue.deleted)
}

func TestCompanyUpdateValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPut, "/api/company", `{"name":""}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "name", decodeError(t, resp).Errors[0].Field)

	resp = ts.do(http.MethodPut, "/api/company", `not json`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_request", decodeError(t, resp).Errors[0].Code)
}

func TestProductRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/products/barcode/8901234567890", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Basmati rice 5kg")

	resp = ts.do(http.MethodGet, "/api/products/barcode/000", "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.do(http.MethodGet, "/api/products/low-stock", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"low_stock_alert":"5"`)

	resp = ts.do(http.MethodPost, "/api/products/11/stock", `{"delta":"12","reason":"purchase","reference":"PO-7"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, ts.products.adjusted)
	assert.Equal(t, "11", ts.products.adjusted.ID)
	assert.True(t, ts.products.adjusted.Delta.Equal(decimal.NewFromInt(12)))

	resp = ts.do(http.MethodPost, "/api/products/11/stock", `{"delta":"-50"}`)
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "adjustment would take stock below zero", decodeError(t, resp).Message)
}

func TestPaymentRoutes(t *testing.T) {
	ts := newTestServer(t)

	body := `{"splits":[{"payment_mode":"cash","amount":"500"},{"payment_mode":"upi","amount":"200","reference":"UTR1"}],"date":"2024-06-12"}`
	resp := ts.do(http.MethodPost, "/api/invoices/7/payments", body)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.NotNil(t, ts.payments.recorded)
	assert.Equal(t, "7", ts.payments.recorded.InvoiceID)
	require.Len(t, ts.payments.recorded.Splits, 2)
	require.NotNil(t, ts.payments.recorded.Date)
	assert.Equal(t, 12, ts.payments.recorded.Date.Day())

	resp = ts.do(http.MethodPost, "/api/invoices/7/payments", `{"splits":[{"amount":"2000"}]}`)
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "payment exceeds the balance due", decodeError(t, resp).Message)

	resp = ts.do(http.MethodGet, "/api/reports/outstanding?customer_id=42", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "42", ts.payments.customer)
	assert.Contains(t, resp.Body.String(), `"total_due":"590"`)
}
