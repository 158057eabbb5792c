package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"activity_service/internal/ctxdata"
	"activity_service/internal/domain"
	"activity_service/internal/repository"
)

type GradingServiceInterface interface {
	GradeSubmission(ctx context.Context, id uuid.UUID, patch domain.GradePatch, expectedVersion int64) (*domain.Submission, error)
}

// GradingService applies version-gated updates to a submission's grading
// fields. It follows the same conditional-update contract as the activity
// store but is scoped to the submission's own version, so grading never
// contends with submission traffic.
type GradingService struct {
	submissions SubmissionStore
}

func NewGradingService(submissions SubmissionStore) *GradingService {
	return &GradingService{submissions: submissions}
}

func (s *GradingService) GradeSubmission(ctx context.Context, id uuid.UUID, patch domain.GradePatch, expectedVersion int64) (*domain.Submission, error) {
	userRole, ok := ctxdata.GetUserRole(ctx)
	if !ok || userRole != string(domain.UserRoleTutor) {
		return nil, ErrPermissionDenied
	}

	if patch.Score == nil && patch.Feedback == nil {
		return nil, fmt.Errorf("%w: empty grade patch", ErrInvalidArgument)
	}
	if patch.Score != nil && *patch.Score < 0 {
		return nil, fmt.Errorf("%w: score must not be negative", ErrInvalidArgument)
	}

	ok, err := s.submissions.UpdateGradeVersioned(ctx, id, patch, expectedVersion)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubmissionNotFound, id)
		}
		return nil, err
	}
	if !ok {
		return nil, &GradeConflictError{SubmissionID: id, ExpectedVersion: expectedVersion}
	}

	return s.submissions.GetByID(ctx, id)
}
