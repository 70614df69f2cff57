package reconciler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/internal/ledger"
	"github.com/lukasortiz/taskpay-backend/internal/webhooks"
	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
	"github.com/lukasortiz/taskpay-backend/pkg/logger"
)

const testPayoutDelay = 5 * 24 * time.Hour

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	order   models.Order
	listing models.ServiceListing
	payment models.Payment
	escrow  models.Escrow
	booking models.Booking
	invoice models.Invoice
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func setupFixture(t *testing.T, maxAttempts int, extraHandlers map[string]Handler) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Order{},
		&models.Company{},
		&models.Provider{},
		&models.ServiceListing{},
		&models.Payment{},
		&models.Escrow{},
		&models.Booking{},
		&models.Invoice{},
		&models.PayoutRequest{},
		&models.FinanceEvent{},
		&models.WebhookEvent{},
	))

	providerID := uuid.New()
	listing := models.ServiceListing{ID: uuid.New(), ProviderID: providerID, Title: "Garden care", Active: true}
	require.NoError(t, db.Create(&listing).Error)

	order := models.Order{ID: uuid.New(), BuyerID: uuid.New(), ServiceID: listing.ID, RegionID: uuid.New(), Currency: "EUR"}
	require.NoError(t, db.Create(&order).Error)

	payment := models.Payment{
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		Source:      "web",
		Amount:      decimal.RequireFromString("100.00"),
		Currency:    "EUR",
		Fingerprint: uuid.NewString(),
		Status:      enums.PaymentStatusPending,
	}
	require.NoError(t, db.Create(&payment).Error)

	escrow := models.Escrow{
		OrderID:  order.ID,
		Status:   enums.EscrowStatusPending,
		Amount:   decimal.RequireFromString("100.00"),
		Currency: "EUR",
	}
	require.NoError(t, db.Create(&escrow).Error)

	booking := models.Booking{
		OrderID:          order.ID,
		Status:           enums.BookingStatusAwaitingAssignment,
		BaseAmount:       decimal.RequireFromString("100.00"),
		CommissionAmount: decimal.RequireFromString("10.00"),
		TaxAmount:        decimal.RequireFromString("20.00"),
		TotalAmount:      decimal.RequireFromString("130.00"),
		Currency:         "EUR",
		SLAExpiresAt:     time.Now().UTC().Add(72 * time.Hour),
	}
	require.NoError(t, db.Create(&booking).Error)

	invoice := models.Invoice{
		OrderID:    order.ID,
		Status:     enums.InvoiceStatusIssued,
		AmountDue:  decimal.RequireFromString("130.00"),
		AmountPaid: decimal.Zero,
		Currency:   "EUR",
		DueAt:      time.Now().UTC().Add(14 * 24 * time.Hour),
	}
	require.NoError(t, db.Create(&invoice).Error)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)
	reconcilerRepo := NewRepository(db)

	registry := NewRegistry()
	registry.Register(ProviderGateway, NewGatewayHandler(reconcilerRepo, ledgerSvc, testPayoutDelay))
	registry.Register(ProviderEscrow, NewEscrowHandler(reconcilerRepo, ledgerSvc))
	for name, handler := range extraHandlers {
		registry.Register(name, handler)
	}

	svc, err := NewService(Params{
		Tx:          gormTxRunner{db: db},
		Repo:        webhooks.NewRepository(db),
		Registry:    registry,
		MaxAttempts: maxAttempts,
		Logger:      testLogger(),
	})
	require.NoError(t, err)

	return &fixture{
		db:      db,
		svc:     svc,
		order:   order,
		listing: listing,
		payment: payment,
		escrow:  escrow,
		booking: booking,
		invoice: invoice,
	}
}

func (f *fixture) enqueue(t *testing.T, event models.WebhookEvent) models.WebhookEvent {
	t.Helper()
	if event.Status == "" {
		event.Status = enums.WebhookStatusQueued
	}
	if len(event.Payload) == 0 {
		event.Payload = []byte(`{}`)
	}
	require.NoError(t, f.db.Create(&event).Error)
	return event
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.WebhookEvent {
	t.Helper()
	var event models.WebhookEvent
	require.NoError(t, f.db.First(&event, "id = ?", id).Error)
	return event
}

func TestProcessQueueAppliesCapture(t *testing.T) {
	f := setupFixture(t, 0, nil)

	event := f.enqueue(t, models.WebhookEvent{
		Provider:  ProviderGateway,
		EventType: EventCaptureSucceeded,
		Payload:   []byte(`{"gateway_ref":"gw_789"}`),
		PaymentID: &f.payment.ID,
	})

	require.NoError(t, f.svc.ProcessQueue(context.Background(), 10))

	processed := f.reload(t, event.ID)
	require.Equal(t, enums.WebhookStatusSucceeded, processed.Status)
	require.Nil(t, processed.LastError)
	require.Nil(t, processed.NextRetryAt)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "id = ?", f.payment.ID).Error)
	require.Equal(t, enums.PaymentStatusCaptured, payment.Status)
	require.NotNil(t, payment.CapturedAt)
	require.NotNil(t, payment.GatewayRef)
	require.Equal(t, "gw_789", *payment.GatewayRef)

	var escrow models.Escrow
	require.NoError(t, f.db.First(&escrow, "order_id = ?", f.order.ID).Error)
	require.Equal(t, enums.EscrowStatusFunded, escrow.Status)
	require.NotNil(t, escrow.FundedAt)

	var invoice models.Invoice
	require.NoError(t, f.db.First(&invoice, "order_id = ?", f.order.ID).Error)
	require.Equal(t, enums.InvoiceStatusPaid, invoice.Status)
	require.Equal(t, "130.00", invoice.AmountPaid.StringFixed(2))
	require.NotNil(t, invoice.PaidAt)

	var payout models.PayoutRequest
	require.NoError(t, f.db.First(&payout, "payment_id = ?", f.payment.ID).Error)
	require.Equal(t, f.listing.ProviderID, payout.ProviderID)
	require.Equal(t, enums.PayoutStatusPending, payout.Status)
	// Payout amount follows the booking base, not the charged total.
	require.Equal(t, "100.00", payout.Amount.StringFixed(2))
	minScheduled := time.Now().UTC().Add(testPayoutDelay - time.Minute)
	require.True(t, payout.ScheduledFor.After(minScheduled))

	var ledgerEvent models.FinanceEvent
	require.NoError(t, f.db.First(&ledgerEvent, "event_type = ?", enums.FinanceEventPaymentCaptured).Error)
	require.Equal(t, f.order.ID, *ledgerEvent.OrderID)
}

func TestProcessQueueCaptureRedeliveryIsIdempotent(t *testing.T) {
	f := setupFixture(t, 0, nil)

	first := f.enqueue(t, models.WebhookEvent{
		Provider:  ProviderGateway,
		EventType: EventCaptureSucceeded,
		PaymentID: &f.payment.ID,
	})
	require.NoError(t, f.svc.ProcessQueue(context.Background(), 10))

	second := f.enqueue(t, models.WebhookEvent{
		Provider:  ProviderGateway,
		EventType: EventCaptureSucceeded,
		PaymentID: &f.payment.ID,
	})
	require.NoError(t, f.svc.ProcessQueue(context.Background(), 10))

	require.Equal(t, enums.WebhookStatusSucceeded, f.reload(t, first.ID).Status)
	require.Equal(t, enums.WebhookStatusSucceeded, f.reload(t, second.ID).Status)

	var payoutCount int64
	require.NoError(t, f.db.Model(&models.PayoutRequest{}).Count(&payoutCount).Error)
	require.EqualValues(t, 1, payoutCount)

	var ignored models.FinanceEvent
	require.NoError(t, f.db.First(&ignored, "event_type = ?", enums.FinanceEventWebhookIgnored).Error)
}

func TestProcessQueueAppliesRefund(t *testing.T) {
	f := setupFixture(t, 0, nil)

	event := f.enqueue(t, models.WebhookEvent{
		Provider:  ProviderGateway,
		EventType: EventRefundSucceeded,
		OrderID:   &f.order.ID,
	})
	require.NoError(t, f.svc.ProcessQueue(context.Background(), 10))

	require.Equal(t, enums.WebhookStatusSucceeded, f.reload(t, event.ID).Status)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "id = ?", f.payment.ID).Error)
	require.Equal(t, enums.PaymentStatusRefunded, payment.Status)
	require.NotNil(t, payment.RefundedAt)

	var invoice models.Invoice
	require.NoError(t, f.db.First(&invoice, "order_id = ?", f.order.ID).Error)
	require.Equal(t, enums.InvoiceStatusCancelled, invoice.Status)
}

func TestProcessQueueEscrowFundedByExternalRef(t *testing.T) {
	f := setupFixture(t, 0, nil)

	ref := "esc_42"
	require.NoError(t, f.db.Model(&models.Escrow{}).Where("id = ?", f.escrow.ID).Update("external_ref", ref).Error)

	event := f.enqueue(t, models.WebhookEvent{
		Provider:  ProviderEscrow,
		EventType: EventEscrowFunded,
		Payload:   []byte(`{"external_ref":"esc_42"}`),
	})
	require.NoError(t, f.svc.ProcessQueue(context.Background(), 10))

	require.Equal(t, enums.WebhookStatusSucceeded, f.reload(t, event.ID).Status)

	var escrow models.Escrow
	require.NoError(t, f.db.First(&escrow, "id = ?", f.escrow.ID).Error)
	require.Equal(t, enums.EscrowStatusFunded, escrow.Status)

	var ledgerEvent models.FinanceEvent
	require.NoError(t, f.db.First(&ledgerEvent, "event_type = ?", enums.FinanceEventEscrowFunded).Error)
}

func TestProcessQueueDiscardsReleaseBeforeFunding(t *testing.T) {
	f := setupFixture(t, 0, nil)

	event := f.enqueue(t, models.WebhookEvent{
		Provider:  ProviderEscrow,
		EventType: EventEscrowReleased,
		EscrowID:  &f.escrow.ID,
	})
	require.NoError(t, f.svc.ProcessQueue(context.Background(), 10))

	processed := f.reload(t, event.ID)
	require.Equal(t, enums.WebhookStatusDiscarded, processed.Status)
	require.NotNil(t, processed.LastError)
	require.Contains(t, *processed.LastError, "cannot release before funding")

	// The pending escrow keeps its status; nothing was paid out.
	var escrow models.Escrow
	require.NoError(t, f.db.First(&escrow, "id = ?", f.escrow.ID).Error)
	require.Equal(t, enums.EscrowStatusPending, escrow.Status)
	require.Nil(t, escrow.ReleasedAt)
}

func TestProcessQueueDiscardsUnresolvableReference(t *testing.T) {
	f := setupFixture(t, 0, nil)

	missing := uuid.New()
	event := f.enqueue(t, models.WebhookEvent{
		Provider:  ProviderGateway,
		EventType: EventCaptureSucceeded,
		PaymentID: &missing,
	})

	require.NoError(t, f.svc.ProcessQueue(context.Background(), 10))

	processed := f.reload(t, event.ID)
	require.Equal(t, enums.WebhookStatusDiscarded, processed.Status)
	require.NotNil(t, processed.LastError)
	require.Contains(t, *processed.LastError, "not found")
	require.EqualValues(t, 1, processed.Attempts)

	// The handler's rollback keeps the payment untouched.
	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "id = ?", f.payment.ID).Error)
	require.Equal(t, enums.PaymentStatusPending, payment.Status)
}

func TestProcessQueueDiscardsUnsupportedProvider(t *testing.T) {
	f := setupFixture(t, 0, nil)

	event := f.enqueue(t, models.WebhookEvent{
		Provider:  "carrier-pigeon",
		EventType: "delivery",
	})
	require.NoError(t, f.svc.ProcessQueue(context.Background(), 10))

	processed := f.reload(t, event.ID)
	require.Equal(t, enums.WebhookStatusDiscarded, processed.Status)
	require.NotNil(t, processed.LastError)
	require.Contains(t, *processed.LastError, "unsupported webhook provider")
}

type failingHandler struct{}

func (failingHandler) Handle(ctx context.Context, tx *gorm.DB, event *models.WebhookEvent) error {
	return errors.New("downstream unavailable")
}

func TestProcessQueueRetriesThenDiscards(t *testing.T) {
	f := setupFixture(t, 3, map[string]Handler{"flaky": failingHandler{}})

	event := f.enqueue(t, models.WebhookEvent{
		Provider:  "flaky",
		EventType: "anything",
	})

	for attempt := 1; attempt <= 3; attempt++ {
		err := f.svc.ProcessQueue(context.Background(), 10)
		require.Error(t, err)
		require.Contains(t, err.Error(), "downstream unavailable")

		processed := f.reload(t, event.ID)
		require.EqualValues(t, attempt, processed.Attempts)
		if attempt < 3 {
			require.Equal(t, enums.WebhookStatusFailed, processed.Status)
			require.NotNil(t, processed.NextRetryAt)
			// Pull the retry time back so the next pass picks the event up.
			past := time.Now().UTC().Add(-time.Second)
			require.NoError(t, f.db.Model(&models.WebhookEvent{}).Where("id = ?", event.ID).Update("next_retry_at", past).Error)
		} else {
			require.Equal(t, enums.WebhookStatusDiscarded, processed.Status)
			require.Nil(t, processed.NextRetryAt)
		}
	}

	// A discarded event never comes back.
	require.NoError(t, f.svc.ProcessQueue(context.Background(), 10))
	require.EqualValues(t, 3, f.reload(t, event.ID).Attempts)
}

func TestBackoffGrowthAndCap(t *testing.T) {
	require.Equal(t, time.Second, backoff(0))
	require.Equal(t, 2*time.Second, backoff(1))
	require.Equal(t, 8*time.Second, backoff(3))
	require.Equal(t, maxBackoff, backoff(10))
	require.Equal(t, maxBackoff, backoff(50))
}
