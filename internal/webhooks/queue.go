package webhooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
	pkgerrors "github.com/lukasortiz/taskpay-backend/pkg/errors"
)

// Queue accepts inbound provider notifications and persists them for
// asynchronous processing. Enqueue never runs a handler; a provider callback
// must return quickly and a processing failure must not lose the event.
type Queue interface {
	Enqueue(ctx context.Context, input EnqueueInput) (*models.WebhookEvent, error)
}

// EnqueueInput is one inbound notification.
type EnqueueInput struct {
	Provider  string
	EventType string
	Payload   json.RawMessage
	OrderID   *uuid.UUID
	PaymentID *uuid.UUID
	EscrowID  *uuid.UUID
}

type queue struct {
	repo Repository
}

// NewQueue wires the ingestion queue with the provided repository.
func NewQueue(repo Repository) (Queue, error) {
	if repo == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	return &queue{repo: repo}, nil
}

func (q *queue) Enqueue(ctx context.Context, input EnqueueInput) (*models.WebhookEvent, error) {
	if input.Provider == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider required")
	}
	if input.EventType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event type required")
	}
	if len(input.Payload) == 0 || !json.Valid(input.Payload) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payload must be well-formed JSON")
	}

	event := &models.WebhookEvent{
		Provider:  input.Provider,
		EventType: input.EventType,
		Payload:   input.Payload,
		Status:    enums.WebhookStatusQueued,
		OrderID:   input.OrderID,
		PaymentID: input.PaymentID,
		EscrowID:  input.EscrowID,
	}
	if err := q.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}
