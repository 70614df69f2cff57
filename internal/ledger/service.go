package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// Service defines operations that record finance events. Events are
// append-only; nothing here updates or deletes a recorded row.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEvent(ctx context.Context, input RecordEventInput) (*models.FinanceEvent, error)
	HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.FinanceEventType) (bool, error)
}

type service struct {
	repo Repository
}

// RecordEventInput captures the immutable data a finance event requires.
type RecordEventInput struct {
	Type            enums.FinanceEventType `json:"type"`
	OrderID         *uuid.UUID             `json:"order_id"`
	PaymentID       *uuid.UUID             `json:"payment_id"`
	EscrowID        *uuid.UUID             `json:"escrow_id"`
	DisputeID       *uuid.UUID             `json:"dispute_id"`
	PayoutRequestID *uuid.UUID             `json:"payout_request_id"`
	Snapshot        json.RawMessage        `json:"snapshot"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) RecordEvent(ctx context.Context, input RecordEventInput) (*models.FinanceEvent, error) {
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid finance event type %q", input.Type)
	}
	if input.OrderID != nil && *input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id must not be the zero uuid")
	}

	event := &models.FinanceEvent{
		EventType:       input.Type,
		OrderID:         input.OrderID,
		PaymentID:       input.PaymentID,
		EscrowID:        input.EscrowID,
		DisputeID:       input.DisputeID,
		PayoutRequestID: input.PayoutRequestID,
		Snapshot:        input.Snapshot,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.FinanceEventType) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid finance event type %q", eventType)
	}

	events, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.EventType == eventType {
			return true, nil
		}
	}
	return false, nil
}
