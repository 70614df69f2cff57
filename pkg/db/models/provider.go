package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider is a fulfilment party operating under a company.
type Provider struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CompanyID    uuid.UUID `gorm:"column:company_id;type:uuid;not null;index"`
	RegionID     uuid.UUID `gorm:"column:region_id;type:uuid;not null;index"`
	Active       bool      `gorm:"column:active;not null;default:true"`
	RegisteredAt time.Time `gorm:"column:registered_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
