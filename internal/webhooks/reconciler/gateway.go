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

// ProviderGateway is the registry key for the payment gateway handler.
const ProviderGateway = "gateway"

// Gateway event types.
const (
	EventCaptureSucceeded = "capture.succeeded"
	EventRefundSucceeded  = "refund.succeeded"
)

type gatewayPayload struct {
	GatewayRef string `json:"gateway_ref"`
}

// GatewayHandler applies payment gateway notifications: captures fund the
// escrow, pay the invoice and schedule a payout; refunds cancel the invoice.
type GatewayHandler struct {
	repo        Repository
	ledgerSvc   ledger.Service
	payoutDelay time.Duration
	now         func() time.Time
}

// NewGatewayHandler builds the payment gateway handler.
func NewGatewayHandler(repo Repository, ledgerSvc ledger.Service, payoutDelay time.Duration) *GatewayHandler {
	return &GatewayHandler{
		repo:        repo,
		ledgerSvc:   ledgerSvc,
		payoutDelay: payoutDelay,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (h *GatewayHandler) Handle(ctx context.Context, tx *gorm.DB, event *models.WebhookEvent) error {
	repo := h.repo.WithTx(tx)
	ledgerSvc := h.ledgerSvc.WithTx(tx)

	switch event.EventType {
	case EventCaptureSucceeded:
		return h.applyCapture(ctx, repo, ledgerSvc, event)
	case EventRefundSucceeded:
		return h.applyRefund(ctx, repo, ledgerSvc, event)
	default:
		// Unknown gateway event types are recorded and acknowledged without
		// touching the ledger.
		return recordIgnored(ctx, ledgerSvc, event, "unrecognized gateway event type")
	}
}

func (h *GatewayHandler) applyCapture(ctx context.Context, repo Repository, ledgerSvc ledger.Service, event *models.WebhookEvent) error {
	payment, err := resolvePayment(ctx, repo, event)
	if err != nil {
		return err
	}
	if payment.Status == enums.PaymentStatusCaptured {
		return recordIgnored(ctx, ledgerSvc, event, "payment already captured")
	}

	escrow, err := repo.FindEscrowByOrderID(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if escrow == nil {
		return Discardf("no escrow for order %s", payment.OrderID)
	}
	invoice, err := repo.FindInvoiceByOrderID(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return Discardf("no invoice for order %s", payment.OrderID)
	}

	order, err := repo.FindOrderByID(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return Discardf("no order %s for payment %s", payment.OrderID, payment.ID)
	}
	listing, err := repo.FindServiceListingByID(ctx, order.ServiceID)
	if err != nil {
		return err
	}
	if listing == nil {
		return Discardf("no service listing %s for order %s", order.ServiceID, order.ID)
	}

	now := h.now()

	var payload gatewayPayload
	_ = json.Unmarshal(event.Payload, &payload)

	payment.Status = enums.PaymentStatusCaptured
	payment.CapturedAt = &now
	if payload.GatewayRef != "" {
		payment.GatewayRef = &payload.GatewayRef
	}
	if err := repo.SavePayment(ctx, payment); err != nil {
		return err
	}

	escrow.Status = enums.EscrowStatusFunded
	escrow.FundedAt = &now
	if payload.GatewayRef != "" && escrow.ExternalRef == nil {
		escrow.ExternalRef = &payload.GatewayRef
	}
	if err := repo.SaveEscrow(ctx, escrow); err != nil {
		return err
	}

	invoice.Status = enums.InvoiceStatusPaid
	invoice.AmountPaid = invoice.AmountDue
	invoice.PaidAt = &now
	if err := repo.SaveInvoice(ctx, invoice); err != nil {
		return err
	}

	payoutAmount := payment.Amount
	booking, err := repo.FindBookingByOrderID(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if booking != nil {
		payoutAmount = booking.BaseAmount
	}
	payout := &models.PayoutRequest{
		ProviderID:   listing.ProviderID,
		PaymentID:    payment.ID,
		Amount:       payoutAmount,
		Currency:     payment.Currency,
		Status:       enums.PayoutStatusPending,
		ScheduledFor: now.Add(h.payoutDelay),
	}
	if err := repo.CreatePayoutRequest(ctx, payout); err != nil {
		return err
	}

	return recordTransition(ctx, ledgerSvc, ledger.RecordEventInput{
		Type:            enums.FinanceEventPaymentCaptured,
		OrderID:         &payment.OrderID,
		PaymentID:       &payment.ID,
		EscrowID:        &escrow.ID,
		PayoutRequestID: &payout.ID,
	}, map[string]any{
		"amount":        payment.Amount.StringFixed(2),
		"currency":      payment.Currency,
		"scheduled_for": payout.ScheduledFor.Format(time.RFC3339),
	})
}

func (h *GatewayHandler) applyRefund(ctx context.Context, repo Repository, ledgerSvc ledger.Service, event *models.WebhookEvent) error {
	payment, err := resolvePayment(ctx, repo, event)
	if err != nil {
		return err
	}
	if payment.Status == enums.PaymentStatusRefunded {
		return recordIgnored(ctx, ledgerSvc, event, "payment already refunded")
	}

	now := h.now()
	payment.Status = enums.PaymentStatusRefunded
	payment.RefundedAt = &now
	if err := repo.SavePayment(ctx, payment); err != nil {
		return err
	}

	invoice, err := repo.FindInvoiceByOrderID(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if invoice != nil {
		invoice.Status = enums.InvoiceStatusCancelled
		if err := repo.SaveInvoice(ctx, invoice); err != nil {
			return err
		}
	}

	return recordTransition(ctx, ledgerSvc, ledger.RecordEventInput{
		Type:      enums.FinanceEventPaymentRefunded,
		OrderID:   &payment.OrderID,
		PaymentID: &payment.ID,
	}, map[string]any{
		"amount":   payment.Amount.StringFixed(2),
		"currency": payment.Currency,
	})
}

// resolvePayment finds the payment a gateway event refers to, preferring the
// explicit payment reference over the order's latest payment.
func resolvePayment(ctx context.Context, repo Repository, event *models.WebhookEvent) (*models.Payment, error) {
	if event.PaymentID != nil {
		payment, err := repo.FindPaymentByID(ctx, *event.PaymentID)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			return nil, Discardf("payment %s not found", *event.PaymentID)
		}
		return payment, nil
	}
	if event.OrderID != nil {
		payment, err := repo.FindLatestPaymentByOrderID(ctx, *event.OrderID)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			return nil, Discardf("no payment for order %s", *event.OrderID)
		}
		return payment, nil
	}
	return nil, Discardf("event %s carries no payment or order reference", event.ID)
}

func recordIgnored(ctx context.Context, ledgerSvc ledger.Service, event *models.WebhookEvent, reason string) error {
	snapshot, err := json.Marshal(map[string]any{
		"provider":   event.Provider,
		"event_type": event.EventType,
		"reason":     reason,
	})
	if err != nil {
		return err
	}
	_, err = ledgerSvc.RecordEvent(ctx, ledger.RecordEventInput{
		Type:      enums.FinanceEventWebhookIgnored,
		OrderID:   event.OrderID,
		PaymentID: event.PaymentID,
		EscrowID:  event.EscrowID,
		Snapshot:  snapshot,
	})
	return err
}

func recordTransition(ctx context.Context, ledgerSvc ledger.Service, input ledger.RecordEventInput, snapshot map[string]any) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	input.Snapshot = raw
	_, err = ledgerSvc.RecordEvent(ctx, input)
	return err
}
