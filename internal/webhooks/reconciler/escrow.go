package reconciler

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/internal/ledger"
	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// ProviderEscrow is the registry key for the escrow provider handler.
const ProviderEscrow = "escrow"

// Escrow event types.
const (
	EventEscrowFunded   = "escrow.funded"
	EventEscrowReleased = "escrow.released"
)

type escrowPayload struct {
	ExternalRef string `json:"external_ref"`
}

// EscrowHandler applies escrow provider notifications: funded and released
// transitions on the held-funds record.
type EscrowHandler struct {
	repo      Repository
	ledgerSvc ledger.Service
	now       func() time.Time
}

// NewEscrowHandler builds the escrow provider handler.
func NewEscrowHandler(repo Repository, ledgerSvc ledger.Service) *EscrowHandler {
	return &EscrowHandler{
		repo:      repo,
		ledgerSvc: ledgerSvc,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (h *EscrowHandler) Handle(ctx context.Context, tx *gorm.DB, event *models.WebhookEvent) error {
	repo := h.repo.WithTx(tx)
	ledgerSvc := h.ledgerSvc.WithTx(tx)

	switch event.EventType {
	case EventEscrowFunded, EventEscrowReleased:
	default:
		return recordIgnored(ctx, ledgerSvc, event, "unrecognized escrow event type")
	}

	escrow, err := h.resolveEscrow(ctx, repo, event)
	if err != nil {
		return err
	}

	now := h.now()
	var eventType enums.FinanceEventType
	switch event.EventType {
	case EventEscrowFunded:
		if escrow.Status == enums.EscrowStatusFunded {
			return recordIgnored(ctx, ledgerSvc, event, "escrow already funded")
		}
		escrow.Status = enums.EscrowStatusFunded
		escrow.FundedAt = &now
		eventType = enums.FinanceEventEscrowFunded
	case EventEscrowReleased:
		if escrow.Status == enums.EscrowStatusReleased {
			return recordIgnored(ctx, ledgerSvc, event, "escrow already released")
		}
		// Funds that were never captured cannot be paid out.
		if escrow.Status != enums.EscrowStatusFunded {
			return Discardf("escrow %s is %s, cannot release before funding", escrow.ID, escrow.Status)
		}
		escrow.Status = enums.EscrowStatusReleased
		escrow.ReleasedAt = &now
		eventType = enums.FinanceEventEscrowReleased
	}

	if err := repo.SaveEscrow(ctx, escrow); err != nil {
		return err
	}

	return recordTransition(ctx, ledgerSvc, ledger.RecordEventInput{
		Type:     eventType,
		OrderID:  &escrow.OrderID,
		EscrowID: &escrow.ID,
	}, map[string]any{
		"amount":   escrow.Amount.StringFixed(2),
		"currency": escrow.Currency,
	})
}

// resolveEscrow finds the escrow an event refers to by id, external
// reference, or order, in that order of preference.
func (h *EscrowHandler) resolveEscrow(ctx context.Context, repo Repository, event *models.WebhookEvent) (*models.Escrow, error) {
	if event.EscrowID != nil {
		escrow, err := repo.FindEscrowByID(ctx, *event.EscrowID)
		if err != nil {
			return nil, err
		}
		if escrow == nil {
			return nil, Discardf("escrow %s not found", *event.EscrowID)
		}
		return escrow, nil
	}

	var payload escrowPayload
	_ = json.Unmarshal(event.Payload, &payload)
	if payload.ExternalRef != "" {
		escrow, err := repo.FindEscrowByExternalRef(ctx, payload.ExternalRef)
		if err != nil {
			return nil, err
		}
		if escrow == nil {
			return nil, Discardf("no escrow with external ref %q", payload.ExternalRef)
		}
		return escrow, nil
	}

	if event.OrderID != nil {
		escrow, err := repo.FindEscrowByOrderID(ctx, *event.OrderID)
		if err != nil {
			return nil, err
		}
		if escrow == nil {
			return nil, Discardf("no escrow for order %s", *event.OrderID)
		}
		return escrow, nil
	}

	return nil, Discardf("event %s carries no escrow reference", event.ID)
}
