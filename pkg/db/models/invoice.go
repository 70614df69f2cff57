package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// Invoice is the billing document for an order. AmountPaid never exceeds
// AmountDue.
type Invoice struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_invoices_order"`
	Status     enums.InvoiceStatus `gorm:"column:status;not null;default:'issued'"`
	AmountDue  decimal.Decimal     `gorm:"column:amount_due;type:numeric(18,2);not null"`
	AmountPaid decimal.Decimal     `gorm:"column:amount_paid;type:numeric(18,2);not null"`
	Currency   string              `gorm:"column:currency;not null"`
	DueAt      time.Time           `gorm:"column:due_at;not null"`
	PaidAt     *time.Time          `gorm:"column:paid_at"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
