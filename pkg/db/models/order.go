package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is the purchase intent for a listed service. It is created outside
// the payment core and never mutated by it.
type Order struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	ServiceID uuid.UUID `gorm:"column:service_id;type:uuid;not null;index"`
	RegionID  uuid.UUID `gorm:"column:region_id;type:uuid;not null"`
	Currency  string    `gorm:"column:currency;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
