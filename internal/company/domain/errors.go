package domain

import "errors"

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidGSTIN     = errors.New("invalid_gstin")
	ErrInvalidStateCode = errors.New("invalid_state_code")
	ErrStateMismatch    = errors.New("gstin_state_mismatch")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidPhone     = errors.New("invalid_phone")
	ErrInvalidIFSC      = errors.New("invalid_ifsc")
)
