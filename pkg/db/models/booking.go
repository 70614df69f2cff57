package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// Booking carries the fulfilment contract for an order: computed totals,
// the SLA window and the assignment fan-out.
type Booking struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_bookings_order"`
	Status           enums.BookingStatus `gorm:"column:status;not null;default:'awaiting_assignment'"`
	BaseAmount       decimal.Decimal     `gorm:"column:base_amount;type:numeric(18,2);not null"`
	CommissionAmount decimal.Decimal     `gorm:"column:commission_amount;type:numeric(18,2);not null"`
	TaxAmount        decimal.Decimal     `gorm:"column:tax_amount;type:numeric(18,2);not null"`
	TotalAmount      decimal.Decimal     `gorm:"column:total_amount;type:numeric(18,2);not null"`
	Currency         string              `gorm:"column:currency;not null"`
	SLAExpiresAt     time.Time           `gorm:"column:sla_expires_at;not null"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
