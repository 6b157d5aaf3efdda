package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	documentdomain "github.com/smallbiznis/kanakku/internal/document/domain"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
)

// Request bodies embed the domain request and shadow its date with a
// string so plain dates are read in the business timezone.

type createInvoiceBody struct {
	documentdomain.CreateInvoiceRequest
	Date string `json:"date"`
}

type createQuotationBody struct {
	documentdomain.CreateQuotationRequest
	Date string `json:"date"`
}

type createCreditNoteBody struct {
	documentdomain.CreateCreditNoteRequest
	Date string `json:"date"`
}

type createDebitNoteBody struct {
	documentdomain.CreateDebitNoteRequest
	Date string `json:"date"`
}

type convertQuotationBody struct {
	documentdomain.ConvertQuotationRequest
	Date string `json:"date"`
}

type quotationStatusBody struct {
	Status string `json:"status"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var body createInvoiceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	date, err := s.parseDate("date", body.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req := body.CreateInvoiceRequest
	req.Date = date

	doc, err := s.documentSvc.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

func (s *Server) CreateQuotation(c *gin.Context) {
	var body createQuotationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	date, err := s.parseDate("date", body.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req := body.CreateQuotationRequest
	req.Date = date

	doc, err := s.documentSvc.CreateQuotation(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

func (s *Server) CreateCreditNote(c *gin.Context) {
	var body createCreditNoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	date, err := s.parseDate("date", body.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req := body.CreateCreditNoteRequest
	req.Date = date

	doc, err := s.documentSvc.CreateCreditNote(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

func (s *Server) CreateDebitNote(c *gin.Context) {
	var body createDebitNoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	date, err := s.parseDate("date", body.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req := body.CreateDebitNoteRequest
	req.Date = date

	doc, err := s.documentSvc.CreateDebitNote(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	doc, err := s.documentSvc.CancelInvoice(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc})
}

func (s *Server) UpdateQuotationStatus(c *gin.Context) {
	var body quotationStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := documentdomain.Status(strings.ToUpper(strings.TrimSpace(body.Status)))
	doc, err := s.documentSvc.UpdateQuotationStatus(c.Request.Context(), strings.TrimSpace(c.Param("id")), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc})
}

func (s *Server) ConvertQuotation(c *gin.Context) {
	var body convertQuotationBody
	if err := bindOptionalJSON(c, &body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	date, err := s.parseDate("date", body.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req := body.ConvertQuotationRequest
	req.ID = strings.TrimSpace(c.Param("id"))
	req.Date = date

	doc, err := s.documentSvc.ConvertQuotation(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

func (s *Server) ListDocuments(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Kind       string `form:"kind"`
		Status     string `form:"status"`
		CustomerID string `form:"customer_id"`
		From       string `form:"from"`
		To         string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := s.parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := s.parseOptionalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	resp, err := s.documentSvc.List(c.Request.Context(), documentdomain.ListRequest{
		Kind:       strings.TrimSpace(query.Kind),
		Status:     strings.TrimSpace(query.Status),
		CustomerID: strings.TrimSpace(query.CustomerID),
		From:       from,
		To:         to,
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDocument(c *gin.Context) {
	doc, err := s.documentSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc})
}

func (s *Server) DownloadDocumentPDF(c *gin.Context) {
	rendered, err := s.documentSvc.RenderPDF(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	disposition := "attachment"
	if c.Query("inline") == "true" {
		disposition = "inline"
	}
	c.Header("Content-Disposition", disposition+`; filename="`+rendered.Filename+`"`)
	c.Data(http.StatusOK, "application/pdf", rendered.Content)
}

func (s *Server) EmailDocument(c *gin.Context) {
	var req documentdomain.EmailRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	job, err := s.documentSvc.EmailDocument(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

func (s *Server) PreviewDocumentNumber(c *gin.Context) {
	kind, ok := documentdomain.KindFromString(strings.ReplaceAll(c.Param("kind"), "-", "_"))
	if !ok {
		AbortWithError(c, sequencedomain.ErrInvalidSeries)
		return
	}
	date, err := s.parseDate("date", c.Query("date"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := sequencedomain.NextNumberRequest{Kind: kind}
	if date != nil {
		req.Date = *date
	}
	number, err := s.sequenceSvc.Preview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"kind": kind, "number": number}})
}

func (s *Server) GSTSummary(c *gin.Context) {
	from, err := s.parseOptionalTime(c.Query("from"), false)
	if err != nil || from == nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "from is required"))
		return
	}
	to, err := s.parseOptionalTime(c.Query("to"), false)
	if err != nil || to == nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "to is required"))
		return
	}

	summary, err := s.documentSvc.GSTSummary(c.Request.Context(), *from, *to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// bindOptionalJSON binds a body that callers may leave out entirely.
func bindOptionalJSON(c *gin.Context, out any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
