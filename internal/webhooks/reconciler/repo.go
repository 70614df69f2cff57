package reconciler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
)

// Repository exposes the ledger reads and writes the built-in handlers need.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindServiceListingByID(ctx context.Context, id uuid.UUID) (*models.ServiceListing, error)

	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindLatestPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	SavePayment(ctx context.Context, payment *models.Payment) error

	FindEscrowByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	FindEscrowByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error)
	FindEscrowByExternalRef(ctx context.Context, ref string) (*models.Escrow, error)
	SaveEscrow(ctx context.Context, escrow *models.Escrow) error

	FindBookingByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Booking, error)

	FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	SaveInvoice(ctx context.Context, invoice *models.Invoice) error

	CreatePayoutRequest(ctx context.Context, payout *models.PayoutRequest) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reconciler repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.firstOrNil(ctx, &order, "id = ?", id); err != nil {
		return nil, err
	}
	if order.ID == uuid.Nil {
		return nil, nil
	}
	return &order, nil
}

func (r *repository) FindServiceListingByID(ctx context.Context, id uuid.UUID) (*models.ServiceListing, error) {
	var listing models.ServiceListing
	if err := r.firstOrNil(ctx, &listing, "id = ?", id); err != nil {
		return nil, err
	}
	if listing.ID == uuid.Nil {
		return nil, nil
	}
	return &listing, nil
}

func (r *repository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.firstOrNil(ctx, &payment, "id = ?", id); err != nil {
		return nil, err
	}
	if payment.ID == uuid.Nil {
		return nil, nil
	}
	return &payment, nil
}

func (r *repository) FindLatestPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) SavePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) FindEscrowByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := r.firstOrNil(ctx, &escrow, "id = ?", id); err != nil {
		return nil, err
	}
	if escrow.ID == uuid.Nil {
		return nil, nil
	}
	return &escrow, nil
}

func (r *repository) FindEscrowByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := r.firstOrNil(ctx, &escrow, "order_id = ?", orderID); err != nil {
		return nil, err
	}
	if escrow.ID == uuid.Nil {
		return nil, nil
	}
	return &escrow, nil
}

func (r *repository) FindEscrowByExternalRef(ctx context.Context, ref string) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := r.firstOrNil(ctx, &escrow, "external_ref = ?", ref); err != nil {
		return nil, err
	}
	if escrow.ID == uuid.Nil {
		return nil, nil
	}
	return &escrow, nil
}

func (r *repository) SaveEscrow(ctx context.Context, escrow *models.Escrow) error {
	return r.db.WithContext(ctx).Save(escrow).Error
}

func (r *repository) FindBookingByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.firstOrNil(ctx, &booking, "order_id = ?", orderID); err != nil {
		return nil, err
	}
	if booking.ID == uuid.Nil {
		return nil, nil
	}
	return &booking, nil
}

func (r *repository) FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.firstOrNil(ctx, &invoice, "order_id = ?", orderID); err != nil {
		return nil, err
	}
	if invoice.ID == uuid.Nil {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repository) SaveInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *repository) CreatePayoutRequest(ctx context.Context, payout *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) firstOrNil(ctx context.Context, dest any, query string, args ...any) error {
	err := r.db.WithContext(ctx).First(dest, append([]any{query}, args...)...).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
