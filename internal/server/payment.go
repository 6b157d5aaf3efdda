package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/kanakku/internal/payment/domain"
)

type recordPaymentBody struct {
	paymentdomain.RecordRequest
	Date string `json:"date"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var body recordPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	date, err := s.parseDate("date", body.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req := body.RecordRequest
	req.InvoiceID = c.Param("id")
	req.Date = date

	resp, err := s.paymentSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	payments, err := s.paymentSvc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) DeletePayment(c *gin.Context) {
	invoice, err := s.paymentSvc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) OutstandingInvoices(c *gin.Context) {
	resp, err := s.paymentSvc.Outstanding(c.Request.Context(), paymentdomain.OutstandingRequest{
		CustomerID: c.Query("customer_id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PaymentSummary(c *gin.Context) {
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

	summary, err := s.paymentSvc.Summary(c.Request.Context(), *from, *to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
