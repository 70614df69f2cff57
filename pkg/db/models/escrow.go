package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// Escrow tracks held funds for exactly one order. It is funded and released
// only through webhook reconciliation.
type Escrow struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_escrows_order"`
	Status      enums.EscrowStatus `gorm:"column:status;not null;default:'pending'"`
	Amount      decimal.Decimal    `gorm:"column:amount;type:numeric(18,2);not null"`
	Currency    string             `gorm:"column:currency;not null"`
	ExternalRef *string            `gorm:"column:external_ref;index"`
	FundedAt    *time.Time         `gorm:"column:funded_at"`
	ReleasedAt  *time.Time         `gorm:"column:released_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *Escrow) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
