package service

import (
	"context"

	"github.com/google/uuid"

	"activity_service/internal/domain"
)

// ActivityStore is the versioned resource store. ConditionalIncrement is its
// only mutation used on the submission path and must be atomic in the
// backing store; it performs no business validation.
type ActivityStore interface {
	Create(ctx context.Context, activity *domain.Activity) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error)
	UpdateMetadata(ctx context.Context, activity *domain.Activity) error
	List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.Activity, error)
	SetPublished(ctx context.Context, id uuid.UUID, published bool) error
	ConditionalIncrement(ctx context.Context, id uuid.UUID, expectedVersion, delta int64) (ok bool, priorVersion int64, err error)
}

type SubmissionStore interface {
	Create(ctx context.Context, submission *domain.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	CountByStudent(ctx context.Context, activityID, studentID uuid.UUID) (int32, error)
	ListByActivity(ctx context.Context, activityID uuid.UUID) ([]*domain.Submission, error)
	UpdateGradeVersioned(ctx context.Context, id uuid.UUID, patch domain.GradePatch, expectedVersion int64) (bool, error)
}

// EventProducer is the outbound contract to the notification pipeline.
type EventProducer interface {
	Send(ctx context.Context, topic string, message interface{}) error
}
