package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Customer is a buyer. StateCode decides the place of supply; an empty
// StateCode means unknown and is billed as intra-state.
type Customer struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"type:varchar(200);not null;index" json:"name"`
	Email     string            `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone     string            `gorm:"type:varchar(20)" json:"phone,omitempty"`
	GSTIN     string            `gorm:"column:gstin;type:varchar(15);index" json:"gstin,omitempty"`
	StateCode string            `gorm:"type:varchar(2)" json:"state_code,omitempty"`
	Address   string            `gorm:"type:text" json:"address,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

// IsRegistered reports whether the buyer is GST registered (B2B).
func (c Customer) IsRegistered() bool {
	return c.GSTIN != ""
}
