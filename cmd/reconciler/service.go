package main

import (
	"context"
	"errors"
	"time"

	"github.com/lukasortiz/taskpay-backend/internal/worker"
	"github.com/lukasortiz/taskpay-backend/pkg/logger"
	"github.com/lukasortiz/taskpay-backend/pkg/metrics"
)

const (
	jobName = "webhook-reconciler"

	defaultPollInterval = 15 * time.Second
	defaultBatchSize    = 25
	lockTTL             = 2 * time.Minute
	lockRetryInterval   = 30 * time.Second
)

type queueProcessor interface {
	ProcessQueue(ctx context.Context, limit int) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	Processor    queueProcessor
	Lock         worker.Lock
	Metrics      *metrics.ReconcilerMetrics
	PollInterval time.Duration
	BatchSize    int
}

type Service struct {
	logg         *logger.Logger
	processor    queueProcessor
	lock         worker.Lock
	metrics      *metrics.ReconcilerMetrics
	pollInterval time.Duration
	batchSize    int
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Processor == nil {
		return nil, errors.New("queue processor is required")
	}
	if params.Lock == nil {
		return nil, errors.New("instance lock is required")
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Service{
		logg:         params.Logger,
		processor:    params.Processor,
		lock:         params.Lock,
		metrics:      params.Metrics,
		pollInterval: interval,
		batchSize:    batch,
	}, nil
}

// Run acquires the instance lock and drains the webhook queue on a fixed
// interval until the context is canceled. Losing the lock ends the run so a
// replacement instance can take over without double processing.
func (s *Service) Run(ctx context.Context) error {
	if err := s.waitForLock(ctx); err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx); err != nil {
			s.logg.Error(releaseCtx, "failed to release reconciler lock", err)
		}
	}()

	s.logg.Info(ctx, "reconciler lock acquired")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "reconciler context canceled")
			return ctx.Err()
		case <-ticker.C:
		}

		if err := s.lock.Refresh(ctx); err != nil {
			s.logg.Error(ctx, "reconciler lock lost", err)
			return err
		}

		start := time.Now()
		err := s.processor.ProcessQueue(ctx, s.batchSize)
		s.metrics.ObserveDuration(jobName, time.Since(start))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.metrics.IncFailure(jobName)
			s.logg.Error(ctx, "reconciliation pass finished with errors", err)
			continue
		}
		s.metrics.IncSuccess(jobName)
	}
}

// waitForLock polls until this instance owns the lock or the context ends.
func (s *Service) waitForLock(ctx context.Context) error {
	for {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		s.logg.Info(ctx, "reconciler lock held elsewhere, waiting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
