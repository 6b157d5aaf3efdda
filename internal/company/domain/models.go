package domain

import "time"

// SingletonID is the primary key of the only company row.
const SingletonID int64 = 1

// Company holds the seller details printed on every document. The seller
// state code decides between CGST+SGST and IGST.
type Company struct {
	ID                int64     `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Name              string    `gorm:"type:varchar(200);not null" json:"name"`
	AddressLine1      string    `gorm:"type:varchar(255)" json:"address_line1"`
	AddressLine2      string    `gorm:"type:varchar(255)" json:"address_line2"`
	City              string    `gorm:"type:varchar(100)" json:"city"`
	Pincode           string    `gorm:"type:varchar(10)" json:"pincode"`
	GSTIN             string    `gorm:"column:gstin;type:varchar(15)" json:"gstin"`
	StateCode         string    `gorm:"type:varchar(2);not null" json:"state_code"`
	Phone             string    `gorm:"type:varchar(20)" json:"phone"`
	Email             string    `gorm:"type:varchar(255)" json:"email"`
	BankName          string    `gorm:"type:varchar(100)" json:"bank_name"`
	BankAccount       string    `gorm:"type:varchar(34)" json:"bank_account"`
	BankIFSC          string    `gorm:"column:bank_ifsc;type:varchar(11)" json:"bank_ifsc"`
	BankBranch        string    `gorm:"type:varchar(100)" json:"bank_branch"`
	UPIID             string    `gorm:"column:upi_id;type:varchar(100)" json:"upi_id"`
	AutoEmailInvoices bool      `gorm:"not null;default:false" json:"auto_email_invoices"`
	EmailRecipient    string    `gorm:"type:varchar(255)" json:"email_recipient"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Company) TableName() string { return "company_settings" }

// Address joins the non-empty address lines.
func (c Company) Address() string {
	out := ""
	for _, part := range []string{c.AddressLine1, c.AddressLine2, c.City, c.Pincode} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}
