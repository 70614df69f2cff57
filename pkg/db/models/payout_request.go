package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// PayoutRequest schedules settled funds for transfer to a provider. Created
// only when a capture succeeds.
type PayoutRequest struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProviderID    uuid.UUID          `gorm:"column:provider_id;type:uuid;not null;index"`
	PaymentID     uuid.UUID          `gorm:"column:payment_id;type:uuid;not null;index"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric(18,2);not null"`
	Currency      string             `gorm:"column:currency;not null"`
	Status        enums.PayoutStatus `gorm:"column:status;not null;default:'pending'"`
	ScheduledFor  time.Time          `gorm:"column:scheduled_for;not null"`
	FailureReason *string            `gorm:"column:failure_reason"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PayoutRequest) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
