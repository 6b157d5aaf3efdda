package domain

import "errors"

var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrInvalidGSTIN = errors.New("invalid_gstin")
	ErrInvalidHSN   = errors.New("invalid_hsn_code")
	ErrInvalidState = errors.New("invalid_state_code")
)
