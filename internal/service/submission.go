package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"activity_service/internal/domain"
	"activity_service/internal/repository"
	"activity_service/pkg/logger"
)

const submissionCreatedTopic = "submission-events"

// Defaults for the conflict retry policy: budget of 3 retried reads with an
// increasing delay before each one.
var defaultBackoff = []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}

const defaultMaxRetries = 3

type SubmitRequest struct {
	ActivityID uuid.UUID
	StudentID  uuid.UUID
	Comment    *string
	FileID     *uuid.UUID
}

type SubmitResult struct {
	Submission *domain.Submission
	// ActivityVersion is the activity's version after this submission's
	// reservation.
	ActivityVersion  int64
	AttemptNumber    int32
	TotalSubmissions int64
	RetriesUsed      int
}

type SubmissionServiceInterface interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	GetSubmissionWithVersion(ctx context.Context, id uuid.UUID) (*SubmissionWithVersion, error)
	ListSubmissionsByActivity(ctx context.Context, activityID uuid.UUID) ([]*domain.Submission, error)
	Stats() StatsSnapshot
	ResetStats()
}

type SubmitConfig struct {
	MaxRetries int
	Backoff    []time.Duration
}

// SubmitCoordinator serializes concurrent submissions against one activity
// through the store's conditional increment. It holds no locks across the
// read-validate-update-create sequence; a failed conditional update is
// re-read and retried within a fixed budget, and a failed create is
// compensated by reversing the reservation.
type SubmitCoordinator struct {
	activities  ActivityStore
	submissions SubmissionStore
	producer    EventProducer
	stats       *SubmitStats
	logger      *logger.Logger

	maxRetries int
	backoff    []time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSubmitCoordinator(
	activities ActivityStore,
	submissions SubmissionStore,
	producer EventProducer,
	stats *SubmitStats,
	log *logger.Logger,
	cfg SubmitConfig,
) *SubmitCoordinator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = defaultBackoff
	}
	return &SubmitCoordinator{
		activities:  activities,
		submissions: submissions,
		producer:    producer,
		stats:       stats,
		logger:      log,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.Backoff,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Submit runs one submission attempt through READ, VALIDATE, UPDATE, CREATE.
// Only a version conflict at UPDATE loops back to READ; every business
// rejection is deterministic and returned without retry.
func (s *SubmitCoordinator) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.ActivityID == uuid.Nil || req.StudentID == uuid.Nil {
		return nil, fmt.Errorf("%w: activity and student ids are required", ErrInvalidArgument)
	}

	s.stats.RecordAttempt()

	retries := 0
	// The attempt number is fixed at the call's first read. A conflict retry
	// re-reads the activity but keeps the attempt it set out to make, so a
	// same-student race resolves on the unique index as a duplicate instead
	// of slipping in as the next attempt.
	priorAttempts := int32(-1)
	for {
		activity, err := s.activities.GetByID(ctx, req.ActivityID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, req.ActivityID)
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		if priorAttempts < 0 {
			count, err := s.submissions.CountByStudent(ctx, req.ActivityID, req.StudentID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			priorAttempts = count
		}
		if priorAttempts >= activity.MaxAttempts {
			return nil, fmt.Errorf("%w: student %s used %d of %d attempts on activity %s",
				ErrMaxAttemptsExceeded, req.StudentID, priorAttempts, activity.MaxAttempts, req.ActivityID)
		}

		now := s.now()
		if !activity.IsOpenAt(now) {
			return nil, fmt.Errorf("%w: activity %s opens at %s", ErrNotYetOpen, req.ActivityID, activity.OpensAt)
		}
		isLate := activity.IsLateAt(now)
		if isLate && !activity.LateAllowed {
			return nil, fmt.Errorf("%w: activity %s closed at %s", ErrLateSubmissionRejected, req.ActivityID, activity.ClosesAt)
		}
		if !activity.Published {
			return nil, fmt.Errorf("%w: activity %s", ErrNotPublished, req.ActivityID)
		}

		// Cancellation before the reservation has no side effects.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ok, observed, err := s.activities.ConditionalIncrement(ctx, req.ActivityID, activity.Version, 1)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !ok {
			s.stats.RecordConflict()
			if retries >= s.maxRetries {
				s.stats.RecordRetriesExhausted()
				return nil, &ConflictError{
					ActivityID:      req.ActivityID,
					StudentID:       req.StudentID,
					ExpectedVersion: activity.Version,
					ObservedVersion: observed,
					RetriesUsed:     retries,
				}
			}
			idx := retries
			if idx >= len(s.backoff) {
				idx = len(s.backoff) - 1
			}
			delay := s.backoff[idx]
			retries++
			if err := s.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		// The slot is reserved; from here on any failure, including the
		// caller giving up, must reverse the increment.
		reservedVersion := activity.Version + 1

		submission := &domain.Submission{
			ActivityID:    req.ActivityID,
			StudentID:     req.StudentID,
			AttemptNumber: priorAttempts + 1,
			IsLate:        isLate,
			Comment:       req.Comment,
			FileID:        req.FileID,
		}

		createErr := ctx.Err()
		if createErr == nil {
			createErr = s.submissions.Create(ctx, submission)
		}
		if createErr != nil {
			s.compensate(ctx, req.ActivityID, reservedVersion)
			if errors.Is(createErr, repository.ErrDuplicateAttempt) {
				return nil, fmt.Errorf("%w: activity %s student %s attempt %d",
					ErrDuplicateAttempt, req.ActivityID, req.StudentID, submission.AttemptNumber)
			}
			return nil, createErr
		}

		s.stats.RecordSuccess(retries)
		s.publishCreated(ctx, activity, submission)

		return &SubmitResult{
			Submission:       submission,
			ActivityVersion:  reservedVersion,
			AttemptNumber:    submission.AttemptNumber,
			TotalSubmissions: activity.SubmissionCount + 1,
			RetriesUsed:      retries,
		}, nil
	}
}

// compensate reverses a reservation after a failed create. It runs on a
// cancellation-immune context, uses the version known to be current after
// the successful increment and does not retry; if it still loses, the count
// stays one high until the reconciliation sweep corrects it.
func (s *SubmitCoordinator) compensate(ctx context.Context, activityID uuid.UUID, reservedVersion int64) {
	ctx = context.WithoutCancel(ctx)

	ok, observed, err := s.activities.ConditionalIncrement(ctx, activityID, reservedVersion, -1)
	if err != nil || !ok {
		s.logger.Error("compensation failed, submission count overcounts until reconciled",
			zap.String("activity_id", activityID.String()),
			zap.Int64("reserved_version", reservedVersion),
			zap.Int64("observed_version", observed),
			zap.Error(err),
		)
	}
}

type submissionCreatedEvent struct {
	SubmissionID  string    `json:"submission_id"`
	ActivityID    string    `json:"activity_id"`
	StudentID     string    `json:"student_id"`
	TutorID       string    `json:"tutor_id"`
	AttemptNumber int32     `json:"attempt_number"`
	IsLate        bool      `json:"is_late"`
	CreatedAt     time.Time `json:"created_at"`
}

// publishCreated is best effort; a notification that never leaves the
// process must not fail a submission that is already durable.
func (s *SubmitCoordinator) publishCreated(ctx context.Context, activity *domain.Activity, submission *domain.Submission) {
	if s.producer == nil {
		return
	}

	event := submissionCreatedEvent{
		SubmissionID:  submission.ID.String(),
		ActivityID:    submission.ActivityID.String(),
		StudentID:     submission.StudentID.String(),
		TutorID:       activity.TutorID.String(),
		AttemptNumber: submission.AttemptNumber,
		IsLate:        submission.IsLate,
		CreatedAt:     submission.CreatedAt,
	}
	if err := s.producer.Send(context.WithoutCancel(ctx), submissionCreatedTopic, event); err != nil {
		s.logger.Error("failed to publish submission created event",
			zap.String("submission_id", event.SubmissionID),
			zap.Error(err),
		)
	}
}

func (s *SubmitCoordinator) GetSubmission(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubmissionNotFound, id)
		}
		return nil, err
	}
	return submission, nil
}

// SubmissionWithVersion pairs a submission with the activity version current
// at read time, so callers can anchor follow-up conditional updates.
type SubmissionWithVersion struct {
	Submission      *domain.Submission
	ActivityVersion int64
}

func (s *SubmitCoordinator) GetSubmissionWithVersion(ctx context.Context, id uuid.UUID) (*SubmissionWithVersion, error) {
	submission, err := s.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}

	activity, err := s.activities.GetByID(ctx, submission.ActivityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, submission.ActivityID)
		}
		return nil, err
	}

	return &SubmissionWithVersion{Submission: submission, ActivityVersion: activity.Version}, nil
}

func (s *SubmitCoordinator) ListSubmissionsByActivity(ctx context.Context, activityID uuid.UUID) ([]*domain.Submission, error) {
	if _, err := s.activities.GetByID(ctx, activityID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, activityID)
		}
		return nil, err
	}
	return s.submissions.ListByActivity(ctx, activityID)
}

func (s *SubmitCoordinator) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

func (s *SubmitCoordinator) ResetStats() {
	s.stats.Reset()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
