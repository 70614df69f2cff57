package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

type fakeRepository struct {
	createFn func(ctx context.Context, event *models.FinanceEvent) error
	listFn   func(ctx context.Context, orderID uuid.UUID) ([]models.FinanceEvent, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, event *models.FinanceEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.FinanceEvent, error) {
	if f.listFn != nil {
		return f.listFn(ctx, orderID)
	}
	return nil, nil
}

func TestService_RecordEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	orderID := uuid.New()
	paymentID := uuid.New()
	snapshot := json.RawMessage(`{"amount":"120.50"}`)
	input := RecordEventInput{
		Type:      enums.FinanceEventPaymentCaptured,
		OrderID:   &orderID,
		PaymentID: &paymentID,
		Snapshot:  snapshot,
	}

	var created *models.FinanceEvent
	repo.createFn = func(ctx context.Context, event *models.FinanceEvent) error {
		created = event
		return nil
	}

	got, err := svc.RecordEvent(context.Background(), input)
	if err != nil {
		t.Fatalf("RecordEvent error: %v", err)
	}
	if created == nil {
		t.Fatal("expected finance event to be created")
	}
	if created.EventType != input.Type {
		t.Fatalf("unexpected event type: %v", created.EventType)
	}
	if created.OrderID == nil || *created.OrderID != orderID {
		t.Fatalf("missing order reference: %+v", created)
	}
	if created.PaymentID == nil || *created.PaymentID != paymentID {
		t.Fatalf("missing payment reference: %+v", created)
	}
	if string(created.Snapshot) != string(snapshot) {
		t.Fatalf("snapshot mismatch: %s", created.Snapshot)
	}
	if got != created {
		t.Fatalf("service should return created event")
	}
}

func TestService_WithTx(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var created *models.FinanceEvent
	repo.createFn = func(ctx context.Context, event *models.FinanceEvent) error {
		created = event
		return nil
	}

	orderID := uuid.New()
	if _, err := svc.WithTx(&gorm.DB{}).RecordEvent(context.Background(), RecordEventInput{
		Type:    enums.FinanceEventCheckoutCreated,
		OrderID: &orderID,
	}); err != nil {
		t.Fatalf("RecordEvent error: %v", err)
	}
	if created == nil {
		t.Fatal("expected the transaction-bound service to record through the repository")
	}
	if svc.WithTx(nil) != svc {
		t.Fatal("nil transaction should return the same service")
	}
}

func TestService_RecordEventValidation(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	nilID := uuid.Nil
	tests := []struct {
		name  string
		input RecordEventInput
	}{
		{
			name:  "invalid type",
			input: RecordEventInput{Type: enums.FinanceEventType("not_real")},
		},
		{
			name: "zero order id",
			input: RecordEventInput{
				Type:    enums.FinanceEventCheckoutCreated,
				OrderID: &nilID,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RecordEvent(context.Background(), tc.input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_RecordEventRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, event *models.FinanceEvent) error {
		return expectedErr
	}

	orderID := uuid.New()
	if _, err := svc.RecordEvent(context.Background(), RecordEventInput{
		Type:    enums.FinanceEventEscrowFunded,
		OrderID: &orderID,
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestService_HasEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	orderID := uuid.New()
	repo.listFn = func(ctx context.Context, id uuid.UUID) ([]models.FinanceEvent, error) {
		if id != orderID {
			t.Fatalf("unexpected order id %s", id)
		}
		return []models.FinanceEvent{
			{EventType: enums.FinanceEventCheckoutCreated},
			{EventType: enums.FinanceEventPaymentCaptured},
		}, nil
	}

	found, err := svc.HasEvent(context.Background(), orderID, enums.FinanceEventPaymentCaptured)
	if err != nil {
		t.Fatalf("HasEvent error: %v", err)
	}
	if !found {
		t.Fatal("expected capture event to be found")
	}

	found, err = svc.HasEvent(context.Background(), orderID, enums.FinanceEventEscrowReleased)
	if err != nil {
		t.Fatalf("HasEvent error: %v", err)
	}
	if found {
		t.Fatal("did not expect release event")
	}
}
