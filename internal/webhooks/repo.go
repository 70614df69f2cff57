package webhooks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// Repository manages persistence for the durable webhook inbox.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.WebhookEvent) error
	FetchDue(ctx context.Context, now time.Time, limit int) ([]models.WebhookEvent, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error)
	Save(ctx context.Context, event *models.WebhookEvent) error
	ListDiscarded(ctx context.Context, limit int) ([]models.WebhookEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a webhook event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FetchDue returns events awaiting a first attempt plus failed events whose
// retry time has passed, oldest first.
func (r *repository) FetchDue(ctx context.Context, now time.Time, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_retry_at <= ?)",
			enums.WebhookStatusQueued, enums.WebhookStatusFailed, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// LockByID loads one event under a row lock so concurrent workers serialize
// on it. The lock clause only applies on postgres; sqlite serializes writes
// on its own.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var event models.WebhookEvent
	err := query.First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) Save(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}

// ListDiscarded surfaces permanently failed events for operational review.
func (r *repository) ListDiscarded(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.WebhookStatusDiscarded).
		Order("updated_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
