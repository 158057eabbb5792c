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

// ActivityService manages activity metadata. It never touches Version or
// SubmissionCount; those belong to the submission path alone.
type ActivityService struct {
	activities ActivityStore
}

func NewActivityService(activities ActivityStore) *ActivityService {
	return &ActivityService{activities: activities}
}

func (s *ActivityService) CreateActivity(ctx context.Context, req *domain.Activity) (*domain.Activity, error) {
	userRole, ok := ctxdata.GetUserRole(ctx)
	if !ok || userRole != string(domain.UserRoleTutor) {
		return nil, ErrPermissionDenied
	}

	userID, ok := ctxdata.GetUserID(ctx)
	if !ok || userID != req.TutorID.String() {
		return nil, ErrPermissionDenied
	}

	if req.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidArgument)
	}
	if req.OpensAt != nil && req.ClosesAt != nil && req.ClosesAt.Before(*req.OpensAt) {
		return nil, fmt.Errorf("%w: window closes before it opens", ErrInvalidArgument)
	}

	activity := &domain.Activity{
		TutorID:     req.TutorID,
		Title:       req.Title,
		Description: req.Description,
		MaxAttempts: req.MaxAttempts,
		OpensAt:     req.OpensAt,
		ClosesAt:    req.ClosesAt,
		LateAllowed: req.LateAllowed,
		LatePenalty: req.LatePenalty,
		Published:   req.Published,
	}

	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, err
	}
	return activity, nil
}

func (s *ActivityService) GetActivity(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, id)
		}
		return nil, err
	}
	return activity, nil
}

// ListActivities returns a tutor's activities. Anyone may list, but only the
// owner sees unpublished ones; other callers get the published subset.
func (s *ActivityService) ListActivities(ctx context.Context, filter domain.ActivityFilter) ([]*domain.Activity, error) {
	userID, ok := ctxdata.GetUserID(ctx)
	if !ok || userID != filter.TutorID.String() {
		published := true
		filter.Published = &published
	}
	return s.activities.List(ctx, filter)
}

// UpdateActivity replaces descriptive fields. MaxAttempts stays immutable
// after creation.
func (s *ActivityService) UpdateActivity(ctx context.Context, activity *domain.Activity) error {
	existing, err := s.GetActivity(ctx, activity.ID)
	if err != nil {
		return err
	}

	userID, ok := ctxdata.GetUserID(ctx)
	if !ok || existing.TutorID.String() != userID {
		return ErrPermissionDenied
	}

	if activity.OpensAt != nil && activity.ClosesAt != nil && activity.ClosesAt.Before(*activity.OpensAt) {
		return fmt.Errorf("%w: window closes before it opens", ErrInvalidArgument)
	}

	return s.activities.UpdateMetadata(ctx, activity)
}

func (s *ActivityService) PublishActivity(ctx context.Context, id uuid.UUID) error {
	return s.setPublished(ctx, id, true)
}

func (s *ActivityService) UnpublishActivity(ctx context.Context, id uuid.UUID) error {
	return s.setPublished(ctx, id, false)
}

func (s *ActivityService) setPublished(ctx context.Context, id uuid.UUID, published bool) error {
	existing, err := s.GetActivity(ctx, id)
	if err != nil {
		return err
	}

	userID, ok := ctxdata.GetUserID(ctx)
	if !ok || existing.TutorID.String() != userID {
		return ErrPermissionDenied
	}

	return s.activities.SetPublished(ctx, id, published)
}
