package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/kanakku/pkg/db/pagination"
)

type ListCustomerRequest struct {
	PageToken   string
	PageSize    int
	Name        string
	Email       string
	GSTIN       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerFilter struct {
	Name        string
	Email       string
	GSTIN       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	GSTIN     string         `json:"gstin"`
	StateCode string         `json:"state_code"`
	Address   string         `json:"address"`
	Metadata  map[string]any `json:"metadata"`
}

type GetCustomerRequest struct {
	ID string
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidPhone     = errors.New("invalid_phone")
	ErrInvalidGSTIN     = errors.New("invalid_gstin")
	ErrInvalidStateCode = errors.New("invalid_state_code")
	ErrStateMismatch    = errors.New("gstin_state_mismatch")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
)
