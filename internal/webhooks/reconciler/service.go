package reconciler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/internal/webhooks"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
	"github.com/lukasortiz/taskpay-backend/pkg/logger"
)

const (
	// DefaultMaxAttempts is applied when configuration supplies nothing.
	DefaultMaxAttempts = 8

	maxBackoff = 15 * time.Minute
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drains the webhook inbox: it fetches due events, dispatches each to
// its provider handler and drives the retry/discard state machine. A single
// event's failure never aborts the pass.
type Service struct {
	tx          txRunner
	repo        webhooks.Repository
	registry    *Registry
	maxAttempts int
	logg        *logger.Logger
	now         func() time.Time
}

// Params collects the service dependencies.
type Params struct {
	Tx          txRunner
	Repo        webhooks.Repository
	Registry    *Registry
	MaxAttempts int
	Logger      *logger.Logger
}

// NewService builds the reconciler service.
func NewService(p Params) (*Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	if p.Registry == nil {
		return nil, fmt.Errorf("handler registry required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return &Service{
		tx:          p.Tx,
		repo:        p.Repo,
		registry:    p.Registry,
		maxAttempts: p.MaxAttempts,
		logg:        p.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// ProcessQueue handles up to limit due events. Per-event errors are
// aggregated and returned for observability; every event still lands in a
// recorded state (succeeded, failed with a retry time, or discarded).
func (s *Service) ProcessQueue(ctx context.Context, limit int) error {
	events, err := s.repo.FetchDue(ctx, s.now(), limit)
	if err != nil {
		return fmt.Errorf("fetching due webhook events: %w", err)
	}

	var errs error
	for _, event := range events {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		if err := s.processEvent(ctx, event.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("event %s: %w", event.ID, err))
		}
	}
	return errs
}

// processEvent runs one event through its handler. The handler and the
// success bookkeeping share a transaction, so a capture's ledger transitions
// and the event's terminal status commit together. Failure bookkeeping runs
// in its own transaction after the handler's mutations have rolled back.
func (s *Service) processEvent(ctx context.Context, id uuid.UUID) error {
	var handlerErr error
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		event, err := repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		// A concurrent worker may have resolved the event between selection
		// and locking; the loser skips.
		if event == nil || event.Status.IsTerminal() {
			return nil
		}

		handler := s.registry.For(event.Provider)
		if herr := handler.Handle(ctx, tx, event); herr != nil {
			handlerErr = herr
			return herr
		}

		event.Status = enums.WebhookStatusSucceeded
		event.LastError = nil
		event.NextRetryAt = nil
		return repo.Save(ctx, event)
	})
	if err == nil {
		return nil
	}
	if handlerErr == nil {
		// Infrastructure failure before or after the handler ran; leave the
		// event untouched for the next pass.
		return err
	}
	if rerr := s.recordFailure(ctx, id, handlerErr); rerr != nil {
		return multierr.Append(handlerErr, rerr)
	}
	// A discard is a deliberate terminal outcome, not an operational failure.
	var discard *DiscardError
	if errors.As(handlerErr, &discard) {
		return nil
	}
	return handlerErr
}

func (s *Service) recordFailure(ctx context.Context, id uuid.UUID, handlerErr error) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		event, err := repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if event == nil || event.Status.IsTerminal() {
			return nil
		}

		event.Attempts++
		reason := handlerErr.Error()
		event.LastError = &reason

		var discard *DiscardError
		switch {
		case errors.As(handlerErr, &discard):
			event.Status = enums.WebhookStatusDiscarded
			event.NextRetryAt = nil
		case event.Attempts >= s.maxAttempts:
			event.Status = enums.WebhookStatusDiscarded
			event.NextRetryAt = nil
		default:
			event.Status = enums.WebhookStatusFailed
			retryAt := s.now().Add(backoff(event.Attempts))
			event.NextRetryAt = &retryAt
		}

		if event.Status == enums.WebhookStatusDiscarded {
			ctx := s.logg.WithProvider(ctx, event.Provider)
			s.logg.Warn(s.logg.WithField(ctx, "webhook_event_id", event.ID.String()), "webhook event discarded: "+reason)
		}
		return repo.Save(ctx, event)
	})
}

// backoff returns min(15m, 2^attempts seconds).
func backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return time.Second
	}
	if attempts > 20 {
		return maxBackoff
	}
	d := time.Duration(math.Pow(2, float64(attempts))) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
