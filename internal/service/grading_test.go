package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity_service/internal/ctxdata"
	"activity_service/internal/domain"
	"activity_service/internal/repository"
)

func tutorContext() context.Context {
	return ctxdata.WithUserRole(context.Background(), string(domain.UserRoleTutor))
}

func seedSubmission(t *testing.T, store *repository.MemoryStore) *domain.Submission {
	t.Helper()

	activity := seedActivity(t, store, nil)
	submission := &domain.Submission{
		ActivityID:    activity.ID,
		StudentID:     uuid.New(),
		AttemptNumber: 1,
	}
	require.NoError(t, store.Submissions().Create(context.Background(), submission))
	return submission
}

func TestGradeSubmission_Success(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewGradingService(store.Submissions())
	submission := seedSubmission(t, store)

	score := 87.5
	feedback := "solid work"
	graded, err := svc.GradeSubmission(tutorContext(), submission.ID, domain.GradePatch{
		Score:    &score,
		Feedback: &feedback,
	}, submission.Version)
	require.NoError(t, err)

	require.NotNil(t, graded.Score)
	assert.Equal(t, score, *graded.Score)
	require.NotNil(t, graded.Feedback)
	assert.Equal(t, feedback, *graded.Feedback)
	assert.NotNil(t, graded.GradedAt)
	assert.Equal(t, submission.Version+1, graded.Version)
}

func TestGradeSubmission_VersionConflict(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewGradingService(store.Submissions())
	submission := seedSubmission(t, store)

	score := 50.0
	_, err := svc.GradeSubmission(tutorContext(), submission.ID, domain.GradePatch{Score: &score}, submission.Version+5)
	require.ErrorIs(t, err, ErrVersionConflict)

	var conflict *GradeConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, submission.ID, conflict.SubmissionID)

	// The stale update must not have touched the submission.
	stored, err := store.Submissions().GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Score)
	assert.Equal(t, submission.Version, stored.Version)
}

func TestGradeSubmission_NotFound(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewGradingService(store.Submissions())

	score := 50.0
	_, err := svc.GradeSubmission(tutorContext(), uuid.New(), domain.GradePatch{Score: &score}, 1)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestGradeSubmission_PermissionDenied(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewGradingService(store.Submissions())
	submission := seedSubmission(t, store)

	score := 50.0
	studentCtx := ctxdata.WithUserRole(context.Background(), string(domain.UserRoleStudent))
	_, err := svc.GradeSubmission(studentCtx, submission.ID, domain.GradePatch{Score: &score}, submission.Version)
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.GradeSubmission(context.Background(), submission.ID, domain.GradePatch{Score: &score}, submission.Version)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestGradeSubmission_InvalidPatch(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewGradingService(store.Submissions())
	submission := seedSubmission(t, store)

	_, err := svc.GradeSubmission(tutorContext(), submission.ID, domain.GradePatch{}, submission.Version)
	require.ErrorIs(t, err, ErrInvalidArgument)

	negative := -1.0
	_, err = svc.GradeSubmission(tutorContext(), submission.ID, domain.GradePatch{Score: &negative}, submission.Version)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
