package domain

import "errors"

var (
	ErrInvalidID              = errors.New("invalid_id")
	ErrNotFound               = errors.New("not_found")
	ErrNoItems                = errors.New("no_items")
	ErrInvalidItem            = errors.New("invalid_item")
	ErrInvalidDiscount        = errors.New("invalid_discount")
	ErrDiscountExceedsTotal   = errors.New("discount_exceeds_total")
	ErrInvalidBuyer           = errors.New("invalid_buyer")
	ErrCustomerNotFound       = errors.New("customer_not_found")
	ErrInvalidPaymentMode     = errors.New("invalid_payment_mode")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	ErrInvalidValidity        = errors.New("invalid_validity")
	ErrOriginalNotInvoice     = errors.New("original_not_invoice")
	ErrOriginalCancelled      = errors.New("original_cancelled")
	ErrFullyCredited          = errors.New("fully_credited")
	ErrInvalidAmountPaid      = errors.New("invalid_amount_paid")
	ErrNoRecipient            = errors.New("no_recipient")
	ErrInvalidDateRange       = errors.New("invalid_date_range")
	ErrRendererUnavailable    = errors.New("renderer_unavailable")
)
