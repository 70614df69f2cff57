package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// FinanceEvent is the append-only audit record of a ledger state transition.
// Rows are never updated or deleted.
type FinanceEvent struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	EventType       enums.FinanceEventType `gorm:"column:event_type;not null;index"`
	OrderID         *uuid.UUID             `gorm:"column:order_id;type:uuid;index"`
	PaymentID       *uuid.UUID             `gorm:"column:payment_id;type:uuid"`
	EscrowID        *uuid.UUID             `gorm:"column:escrow_id;type:uuid"`
	DisputeID       *uuid.UUID             `gorm:"column:dispute_id;type:uuid"`
	PayoutRequestID *uuid.UUID             `gorm:"column:payout_request_id;type:uuid"`
	Snapshot        json.RawMessage        `gorm:"column:snapshot;type:jsonb"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (f *FinanceEvent) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
