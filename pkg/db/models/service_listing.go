package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceListing is a purchasable service published by a provider.
type ServiceListing struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProviderID uuid.UUID `gorm:"column:provider_id;type:uuid;not null;index"`
	Title      string    `gorm:"column:title;not null"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
