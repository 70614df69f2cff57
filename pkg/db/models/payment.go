package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// Payment is the ledger row for one checkout intent. The fingerprint is the
// idempotency key: at most one non-discarded payment exists per fingerprint.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	BuyerID     uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	Source      string              `gorm:"column:source;not null"`
	Amount      decimal.Decimal     `gorm:"column:amount;type:numeric(18,2);not null"`
	Currency    string              `gorm:"column:currency;not null"`
	Fingerprint string              `gorm:"column:fingerprint;not null;uniqueIndex:ux_payments_fingerprint"`
	Status      enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	GatewayRef  *string             `gorm:"column:gateway_ref"`
	Metadata    json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	CapturedAt  *time.Time          `gorm:"column:captured_at"`
	RefundedAt  *time.Time          `gorm:"column:refunded_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
