package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// WebhookEvent is the durable inbox row for an inbound provider notification.
// Ingestion only persists it as queued; the reconciler owns every later
// transition.
type WebhookEvent struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Provider    string              `gorm:"column:provider;not null;index"`
	EventType   string              `gorm:"column:event_type;not null"`
	Payload     json.RawMessage     `gorm:"column:payload;type:jsonb;not null"`
	Status      enums.WebhookStatus `gorm:"column:status;not null;default:'queued';index"`
	Attempts    int                 `gorm:"column:attempts;not null;default:0"`
	LastError   *string             `gorm:"column:last_error"`
	NextRetryAt *time.Time          `gorm:"column:next_retry_at"`
	OrderID     *uuid.UUID          `gorm:"column:order_id;type:uuid"`
	PaymentID   *uuid.UUID          `gorm:"column:payment_id;type:uuid"`
	EscrowID    *uuid.UUID          `gorm:"column:escrow_id;type:uuid"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
