package domain

import (
	"context"

	"gorm.io/gorm"
)

type Service interface {
	// NextNumber allocates in its own transaction.
	NextNumber(ctx context.Context, req NextNumberRequest) (*Allocation, error)
	// NextNumberTx allocates inside tx. A rollback of tx releases the number.
	NextNumberTx(ctx context.Context, tx *gorm.DB, req NextNumberRequest) (*Allocation, error)
	// Preview returns the number the next allocation would receive without
	// consuming it.
	Preview(ctx context.Context, req NextNumberRequest) (string, error)
}
