package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"activity_service/pkg/logger"
	"activity_service/pkg/retry"
)

const reconciledTopic = "submission-reconciled"

// reconcileStore is the slice of the activity store the sweep needs.
type reconcileStore interface {
	CountDrift(ctx context.Context) ([]uuid.UUID, error)
	ReconcileCount(ctx context.Context, id uuid.UUID) (int64, error)
}

type eventProducer interface {
	Send(ctx context.Context, topic string, message interface{}) error
}

type reconciledEvent struct {
	ActivityID      string    `json:"activity_id"`
	SubmissionCount int64     `json:"submission_count"`
	ReconciledAt    time.Time `json:"reconciled_at"`
}

// ReconcileWorker is the safety net for best-effort compensation: it
// periodically recomputes each drifted activity's submission count from the
// persisted submissions.
type ReconcileWorker struct {
	store    reconcileStore
	producer eventProducer
	breaker  *retry.CircuitBreaker
	logger   *logger.Logger
	interval time.Duration
}

func NewReconcileWorker(
	store reconcileStore,
	producer eventProducer,
	log *logger.Logger,
	interval time.Duration,
) *ReconcileWorker {
	return &ReconcileWorker{
		store:    store,
		producer: producer,
		breaker:  retry.NewCircuitBreaker(5, 30*time.Second),
		logger:   log,
		interval: interval,
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReconcileWorker) sweep(ctx context.Context) {
	ids, err := w.store.CountDrift(ctx)
	if err != nil {
		w.logger.Errorf("failed to find drifted activities: %v", err)
		return
	}

	for _, id := range ids {
		count, err := w.store.ReconcileCount(ctx, id)
		if err != nil {
			w.logger.Errorf("failed to reconcile activity %s: %v", id, err)
			continue
		}

		w.logger.Info("reconciled submission count",
			zap.String("activity_id", id.String()),
			zap.Int64("submission_count", count),
		)

		w.publishReconciled(ctx, id, count)
	}
}

func (w *ReconcileWorker) publishReconciled(ctx context.Context, id uuid.UUID, count int64) {
	event := reconciledEvent{
		ActivityID:      id.String(),
		SubmissionCount: count,
		ReconciledAt:    time.Now(),
	}

	_, err := retry.WithBackoff(ctx, 3, 100*time.Millisecond, func() (struct{}, error) {
		return struct{}{}, w.breaker.Execute(func() error {
			return w.producer.Send(ctx, reconciledTopic, event)
		})
	})
	if err != nil {
		if errors.Is(err, retry.ErrCircuitOpen) {
			w.logger.Warnf("skipping reconciled event for %s, broker circuit open", id)
			return
		}
		w.logger.Errorf("failed to publish reconciled event for %s: %v", id, err)
	}
}
