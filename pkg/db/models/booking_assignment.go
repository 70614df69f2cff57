package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// BookingAssignment is one pending fulfilment candidate for a booking.
type BookingAssignment struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	BookingID  uuid.UUID            `gorm:"column:booking_id;type:uuid;not null;index"`
	ProviderID uuid.UUID            `gorm:"column:provider_id;type:uuid;not null"`
	Role       enums.AssignmentRole `gorm:"column:role;not null"`
	Status     string               `gorm:"column:status;not null;default:'pending'"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (a *BookingAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
