package finance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// PaymentRow is the flattened read-side shape of a payment joined with its
// order. Reporting never loads entity graphs.
type PaymentRow struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	ServiceID  uuid.UUID
	Status     enums.PaymentStatus
	Amount     decimal.Decimal
	Currency   string
	CreatedAt  time.Time
	CapturedAt *time.Time
	RefundedAt *time.Time
}

// PayoutRow is the flattened read-side shape of a payout request.
type PayoutRow struct {
	ID            uuid.UUID
	ProviderID    uuid.UUID
	PaymentID     uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Status        enums.PayoutStatus
	ScheduledFor  time.Time
	FailureReason *string
	CreatedAt     time.Time
}

// DisputeRow is the flattened read-side shape of a dispute.
type DisputeRow struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ServiceID *uuid.UUID
	Status    enums.DisputeStatus
	Amount    decimal.Decimal
	Currency  string
	OpenedAt  time.Time
}

// InvoiceRow is the flattened read-side shape of an unpaid invoice.
type InvoiceRow struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	AmountDue decimal.Decimal
	Currency  string
	DueAt     time.Time
}

// Window bounds a reporting query; filters are optional.
type Window struct {
	Start      time.Time
	End        time.Time
	RegionID   *uuid.UUID
	ProviderID *uuid.UUID
}

// Repository exposes the explicit read-side queries behind reporting, plus
// the persisted alert de-duplication state.
type Repository interface {
	ListPayments(ctx context.Context, w Window) ([]PaymentRow, error)
	ListPayouts(ctx context.Context, w Window) ([]PayoutRow, error)
	ListPendingPayouts(ctx context.Context, asOf time.Time) ([]PayoutRow, error)
	ListDisputes(ctx context.Context, w Window) ([]DisputeRow, error)
	ListOverdueInvoices(ctx context.Context, asOf time.Time, limit int) ([]InvoiceRow, error)
	ListEventsByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.FinanceEvent, error)

	GetAlertState(ctx context.Context, alias string) (*models.AlertState, error)
	UpsertAlertState(ctx context.Context, state *models.AlertState) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a finance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListPayments(ctx context.Context, w Window) ([]PaymentRow, error) {
	query := r.db.WithContext(ctx).
		Table("payments").
		Select("payments.id, payments.order_id, orders.service_id, payments.status, payments.amount, payments.currency, payments.created_at, payments.captured_at, payments.refunded_at").
		Joins("JOIN orders ON orders.id = payments.order_id").
		Where("payments.created_at >= ? AND payments.created_at < ?", w.Start, w.End)
	if w.RegionID != nil {
		query = query.Where("orders.region_id = ?", *w.RegionID)
	}
	if w.ProviderID != nil {
		query = query.
			Joins("JOIN service_listings ON service_listings.id = orders.service_id").
			Where("service_listings.provider_id = ?", *w.ProviderID)
	}

	var rows []PaymentRow
	if err := query.Order("payments.created_at ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListPayouts(ctx context.Context, w Window) ([]PayoutRow, error) {
	query := r.db.WithContext(ctx).
		Table("payout_requests").
		Select("payout_requests.id, payout_requests.provider_id, payout_requests.payment_id, payout_requests.amount, payout_requests.currency, payout_requests.status, payout_requests.scheduled_for, payout_requests.failure_reason, payout_requests.created_at").
		Where("payout_requests.created_at >= ? AND payout_requests.created_at < ?", w.Start, w.End)
	if w.ProviderID != nil {
		query = query.Where("payout_requests.provider_id = ?", *w.ProviderID)
	}

	var rows []PayoutRow
	if err := query.Order("payout_requests.created_at ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingPayouts returns the backlog: requests that should have settled
// by asOf but are still pending.
func (r *repository) ListPendingPayouts(ctx context.Context, asOf time.Time) ([]PayoutRow, error) {
	var rows []PayoutRow
	if err := r.db.WithContext(ctx).
		Table("payout_requests").
		Select("id, provider_id, payment_id, amount, currency, status, scheduled_for, failure_reason, created_at").
		Where("status = ? AND scheduled_for <= ?", enums.PayoutStatusPending, asOf).
		Order("scheduled_for ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListDisputes(ctx context.Context, w Window) ([]DisputeRow, error) {
	query := r.db.WithContext(ctx).
		Table("disputes").
		Select("disputes.id, disputes.order_id, disputes.service_id, disputes.status, disputes.amount, disputes.currency, disputes.opened_at").
		Where("disputes.opened_at >= ? AND disputes.opened_at < ?", w.Start, w.End)
	if w.RegionID != nil {
		query = query.
			Joins("JOIN orders ON orders.id = disputes.order_id").
			Where("orders.region_id = ?", *w.RegionID)
	}

	var rows []DisputeRow
	if err := query.Order("disputes.opened_at ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListOverdueInvoices(ctx context.Context, asOf time.Time, limit int) ([]InvoiceRow, error) {
	var rows []InvoiceRow
	if err := r.db.WithContext(ctx).
		Table("invoices").
		Select("id, order_id, amount_due, currency, due_at").
		Where("status = ? AND due_at < ?", enums.InvoiceStatusIssued, asOf).
		Order("amount_due DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListEventsByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.FinanceEvent, error) {
	var events []models.FinanceEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) GetAlertState(ctx context.Context, alias string) (*models.AlertState, error) {
	var state models.AlertState
	err := r.db.WithContext(ctx).First(&state, "alias = ?", alias).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *repository) UpsertAlertState(ctx context.Context, state *models.AlertState) error {
	return r.db.WithContext(ctx).Save(state).Error
}
