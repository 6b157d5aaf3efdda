package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	companydomain "github.com/smallbiznis/kanakku/internal/company/domain"
	customerdomain "github.com/smallbiznis/kanakku/internal/customer/domain"
	documentdomain "github.com/smallbiznis/kanakku/internal/document/domain"
	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	paymentdomain "github.com/smallbiznis/kanakku/internal/payment/domain"
	productdomain "github.com/smallbiznis/kanakku/internal/product/domain"
	"github.com/smallbiznis/kanakku/internal/providers/email"
	sequencedomain "github.com/smallbiznis/kanakku/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

var validationErrs = []error{
	ErrInvalidRequest,

	taxdomain.ErrInvalidInput,
	taxdomain.ErrInvalidGSTIN,
	taxdomain.ErrInvalidHSN,
	taxdomain.ErrInvalidState,

	companydomain.ErrInvalidName,
	companydomain.ErrInvalidGSTIN,
	companydomain.ErrInvalidStateCode,
	companydomain.ErrStateMismatch,
	companydomain.ErrInvalidEmail,
	companydomain.ErrInvalidPhone,
	companydomain.ErrInvalidIFSC,

	customerdomain.ErrInvalidName,
	customerdomain.ErrInvalidEmail,
	customerdomain.ErrInvalidPhone,
	customerdomain.ErrInvalidGSTIN,
	customerdomain.ErrInvalidStateCode,
	customerdomain.ErrStateMismatch,
	customerdomain.ErrInvalidID,

	documentdomain.ErrInvalidID,
	documentdomain.ErrNoItems,
	documentdomain.ErrInvalidItem,
	documentdomain.ErrInvalidDiscount,
	documentdomain.ErrDiscountExceedsTotal,
	documentdomain.ErrInvalidBuyer,
	documentdomain.ErrCustomerNotFound,
	documentdomain.ErrInvalidPaymentMode,
	documentdomain.ErrInvalidStatus,
	documentdomain.ErrInvalidValidity,
	documentdomain.ErrOriginalNotInvoice,
	documentdomain.ErrNoRecipient,
	documentdomain.ErrInvalidDateRange,
	documentdomain.ErrInvalidAmountPaid,

	productdomain.ErrInvalidID,
	productdomain.ErrInvalidName,
	productdomain.ErrInvalidHSN,
	productdomain.ErrInvalidUnit,
	productdomain.ErrInvalidPrice,
	productdomain.ErrInvalidGSTRate,
	productdomain.ErrInvalidQuantity,
	productdomain.ErrInvalidReason,
	productdomain.ErrInvalidBarcode,

	paymentdomain.ErrInvalidID,
	paymentdomain.ErrNoSplits,
	paymentdomain.ErrInvalidAmount,
	paymentdomain.ErrInvalidPaymentMode,
	paymentdomain.ErrInvalidDateRange,

	sequencedomain.ErrInvalidSeries,
	sequencedomain.ErrInvalidPrefix,
	sequencedomain.ErrInvalidFiscalYearStart,

	emailqueuedomain.ErrInvalidRecipient,
	emailqueuedomain.ErrInvalidSubject,
	emailqueuedomain.ErrInvalidID,
	emailqueuedomain.ErrInvalidMaxRetries,
	emailqueuedomain.ErrInvalidStatus,
}

var notFoundErrs = []error{
	ErrNotFound,
	customerdomain.ErrNotFound,
	documentdomain.ErrNotFound,
	productdomain.ErrNotFound,
	paymentdomain.ErrNotFound,
	paymentdomain.ErrInvoiceNotFound,
	emailqueuedomain.ErrNotFound,
	gorm.ErrRecordNotFound,
}

var conflictErrs = []error{
	ErrConflict,
	documentdomain.ErrInvalidStateTransition,
	documentdomain.ErrOriginalCancelled,
	documentdomain.ErrFullyCredited,
	productdomain.ErrDuplicateBarcode,
	productdomain.ErrInsufficientStock,
	paymentdomain.ErrInvoiceCancelled,
	paymentdomain.ErrOverpayment,
	emailqueuedomain.ErrInvalidStateTransition,
	sequencedomain.ErrStorageConflict,
	gorm.ErrDuplicatedKey,
}

var unavailableErrs = []error{
	ErrServiceUnavailable,
	documentdomain.ErrRendererUnavailable,
	email.ErrNotConfigured,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if matchesAny(err, validationErrs) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case matchesAny(err, notFoundErrs):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case matchesAny(err, conflictErrs):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case matchesAny(err, unavailableErrs):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same type and code the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if payload.Type != "internal_error" && err != nil {
		code = err.Error()
	}
	return payload.Type, code
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationErrorCode(err error) string {
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "no_items", "invalid_item", "invalid_hsn_code":
		return "items"
	case "discount_exceeds_total":
		return "discount"
	case "no_payment_splits":
		return "splits"
	case "customer_not_found", "invalid_buyer":
		return "buyer"
	case "gstin_state_mismatch":
		return "state_code"
	case "original_not_invoice":
		return "original_invoice_id"
	case "no_recipient":
		return "recipient"
	case "invalid_date_range":
		return "to"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "no_items":
		return "at least one item is required"
	case "discount_exceeds_total":
		return "discount exceeds the document total"
	case "gstin_state_mismatch":
		return "state code does not match the GSTIN"
	case "customer_not_found":
		return "customer not found"
	case "original_not_invoice":
		return "original document is not an invoice"
	case "no_recipient":
		return "no email recipient available"
	case "no_payment_splits":
		return "at least one payment split is required"
	case "invalid_amount_paid":
		return "amount paid must be between zero and the invoice total"
	default:
		return "invalid value"
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, documentdomain.ErrOriginalCancelled):
		return "original invoice is cancelled"
	case errors.Is(err, documentdomain.ErrFullyCredited):
		return "every returned line is already fully credited"
	case errors.Is(err, productdomain.ErrDuplicateBarcode):
		return "barcode is used by another product"
	case errors.Is(err, productdomain.ErrInsufficientStock):
		return "adjustment would take stock below zero"
	case errors.Is(err, paymentdomain.ErrInvoiceCancelled):
		return "invoice is cancelled"
	case errors.Is(err, paymentdomain.ErrOverpayment):
		return "payment exceeds the balance due"
	case errors.Is(err, documentdomain.ErrInvalidStateTransition),
		errors.Is(err, emailqueuedomain.ErrInvalidStateTransition):
		return "invalid state transition"
	default:
		return "conflict"
	}
}
