package domain

import "context"

type UpdateRequest struct {
	Name              string `json:"name"`
	AddressLine1      string `json:"address_line1"`
	AddressLine2      string `json:"address_line2"`
	City              string `json:"city"`
	Pincode           string `json:"pincode"`
	GSTIN             string `json:"gstin"`
	StateCode         string `json:"state_code"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	BankName          string `json:"bank_name"`
	BankAccount       string `json:"bank_account"`
	BankIFSC          string `json:"bank_ifsc"`
	BankBranch        string `json:"bank_branch"`
	UPIID             string `json:"upi_id"`
	AutoEmailInvoices bool   `json:"auto_email_invoices"`
	EmailRecipient    string `json:"email_recipient"`
}

type Service interface {
	// Get returns the stored settings or defaults when none are saved.
	Get(ctx context.Context) (Company, error)
	Update(ctx context.Context, req UpdateRequest) (Company, error)
}
