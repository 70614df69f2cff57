package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// Dispute records a buyer challenge against a payment. The core only reads
// disputes for reporting; lifecycle management lives elsewhere.
type Dispute struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentID  *uuid.UUID          `gorm:"column:payment_id;type:uuid"`
	ServiceID  *uuid.UUID          `gorm:"column:service_id;type:uuid;index"`
	Status     enums.DisputeStatus `gorm:"column:status;not null;default:'open'"`
	Amount     decimal.Decimal     `gorm:"column:amount;type:numeric(18,2);not null"`
	Currency   string              `gorm:"column:currency;not null"`
	OpenedAt   time.Time           `gorm:"column:opened_at;not null"`
	ResolvedAt *time.Time          `gorm:"column:resolved_at"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (d *Dispute) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
