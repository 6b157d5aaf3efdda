package domain

import "errors"

var (
	ErrInvalidSeries          = errors.New("invalid_series")
	ErrInvalidPrefix          = errors.New("invalid_prefix")
	ErrInvalidFiscalYearStart = errors.New("invalid_fiscal_year_start_month")
	ErrStorageConflict        = errors.New("sequence_storage_conflict")
)
