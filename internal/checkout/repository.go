package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
)

const candidateLimit = 15

// Repository manages persistence for checkout orchestration.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindServiceListingByID(ctx context.Context, id uuid.UUID) (*models.ServiceListing, error)
	FindProviderByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	FindCompanyByID(ctx context.Context, id uuid.UUID) (*models.Company, error)

	FindPaymentByFingerprint(ctx context.Context, fingerprint string) (*models.Payment, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error

	FindEscrowByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error)
	CreateEscrow(ctx context.Context, escrow *models.Escrow) error
	SaveEscrow(ctx context.Context, escrow *models.Escrow) error

	FindBookingByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error

	FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error

	ListCandidateProviders(ctx context.Context, regionID uuid.UUID, limit int) ([]models.Provider, error)
	CreateAssignments(ctx context.Context, assignments []models.BookingAssignment) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a checkout repository bound to the provided database.
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
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindServiceListingByID(ctx context.Context, id uuid.UUID) (*models.ServiceListing, error) {
	var listing models.ServiceListing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) FindProviderByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	var provider models.Provider
	if err := r.db.WithContext(ctx).First(&provider, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *repository) FindCompanyByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).First(&company, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *repository) FindPaymentByFingerprint(ctx context.Context, fingerprint string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindEscrowByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	err := r.db.WithContext(ctx).First(&escrow, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *repository) CreateEscrow(ctx context.Context, escrow *models.Escrow) error {
	return r.db.WithContext(ctx).Create(escrow).Error
}

func (r *repository) SaveEscrow(ctx context.Context, escrow *models.Escrow) error {
	return r.db.WithContext(ctx).Save(escrow).Error
}

func (r *repository) FindBookingByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).First(&booking, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) ListCandidateProviders(ctx context.Context, regionID uuid.UUID, limit int) ([]models.Provider, error) {
	var providers []models.Provider
	if err := r.db.WithContext(ctx).
		Joins("JOIN companies ON companies.id = providers.company_id").
		Where("providers.active = ?", true).
		Where("companies.verified = ?", true).
		Where("providers.region_id = ?", regionID).
		Order("providers.registered_at ASC").
		Limit(limit).
		Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *repository) CreateAssignments(ctx context.Context, assignments []models.BookingAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&assignments).Error
}
