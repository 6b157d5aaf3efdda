package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
)

func (s *Server) ListTaxRates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": taxdomain.RateOptions()})
}

func (s *Server) ListStates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": taxdomain.States()})
}

func (s *Server) ListUnits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": taxdomain.Units()})
}

type previewTaxRequest struct {
	Items          []taxdomain.LineItem `json:"items"`
	BuyerGSTIN     string               `json:"buyer_gstin"`
	BuyerStateCode string               `json:"buyer_state_code"`
	Discount       decimal.Decimal      `json:"discount"`
}

// PreviewTax prices a cart against the company's state without issuing
// anything.
func (s *Server) PreviewTax(c *gin.Context) {
	var req previewTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	buyerState := strings.TrimSpace(req.BuyerStateCode)
	if gstin := taxdomain.NormalizeGSTIN(req.BuyerGSTIN); gstin != "" {
		derived, err := taxdomain.StateCodeFromGSTIN(gstin)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if buyerState != "" && buyerState != derived {
			AbortWithError(c, newValidationError("buyer_state_code", "gstin_state_mismatch", "state code does not match the GSTIN"))
			return
		}
		buyerState = derived
	}

	company, err := s.companySvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	totals, err := s.taxEngine.ComputeCart(req.Items, company.StateCode, buyerState, req.Discount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": totals})
}

type gstinLookupResponse struct {
	GSTIN     string `json:"gstin"`
	StateCode string `json:"state_code"`
	StateName string `json:"state_name"`
	PAN       string `json:"pan"`
}

func (s *Server) LookupGSTIN(c *gin.Context) {
	gstin := taxdomain.NormalizeGSTIN(c.Param("gstin"))
	stateCode, err := taxdomain.StateCodeFromGSTIN(gstin)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	stateName, _ := taxdomain.StateName(stateCode)

	c.JSON(http.StatusOK, gin.H{"data": gstinLookupResponse{
		GSTIN:     gstin,
		StateCode: stateCode,
		StateName: stateName,
		PAN:       gstin[2:12],
	}})
}
