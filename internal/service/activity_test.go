package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity_service/internal/ctxdata"
	"activity_service/internal/domain"
	"activity_service/internal/repository"
)

func tutorContextFor(tutorID uuid.UUID) context.Context {
	ctx := ctxdata.WithUserRole(context.Background(), string(domain.UserRoleTutor))
	return ctxdata.WithUserID(ctx, tutorID.String())
}

func TestCreateActivity_Success(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewActivityService(store.Activities())
	tutorID := uuid.New()

	title := "week 3 problem set"
	created, err := svc.CreateActivity(tutorContextFor(tutorID), &domain.Activity{
		TutorID:     tutorID,
		Title:       &title,
		MaxAttempts: 3,
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, int64(1), created.Version)
	assert.Zero(t, created.SubmissionCount)
	assert.False(t, created.Published)
}

func TestCreateActivity_Validation(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewActivityService(store.Activities())
	tutorID := uuid.New()
	ctx := tutorContextFor(tutorID)

	_, err := svc.CreateActivity(ctx, &domain.Activity{TutorID: tutorID, MaxAttempts: 0})
	require.ErrorIs(t, err, ErrInvalidArgument)

	opensAt := time.Now().Add(time.Hour)
	closesAt := opensAt.Add(-time.Minute)
	_, err = svc.CreateActivity(ctx, &domain.Activity{
		TutorID:     tutorID,
		MaxAttempts: 1,
		OpensAt:     &opensAt,
		ClosesAt:    &closesAt,
	})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCreateActivity_PermissionDenied(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewActivityService(store.Activities())
	tutorID := uuid.New()

	// Wrong role.
	studentCtx := ctxdata.WithUserRole(context.Background(), string(domain.UserRoleStudent))
	_, err := svc.CreateActivity(studentCtx, &domain.Activity{TutorID: tutorID, MaxAttempts: 1})
	require.ErrorIs(t, err, ErrPermissionDenied)

	// Right role, creating on someone else's behalf.
	otherCtx := tutorContextFor(uuid.New())
	_, err = svc.CreateActivity(otherCtx, &domain.Activity{TutorID: tutorID, MaxAttempts: 1})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdateActivity_OwnerOnly(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewActivityService(store.Activities())
	activity := seedActivity(t, store, nil)

	title := "renamed"
	activity.Title = &title

	err := svc.UpdateActivity(tutorContextFor(uuid.New()), activity)
	require.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, svc.UpdateActivity(tutorContextFor(activity.TutorID), activity))

	stored, err := store.Activities().GetByID(context.Background(), activity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Title)
	assert.Equal(t, title, *stored.Title)
}

func TestListActivities_VisibilityByCaller(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewActivityService(store.Activities())
	tutorID := uuid.New()

	published := seedActivity(t, store, func(a *domain.Activity) {
		a.TutorID = tutorID
	})
	seedActivity(t, store, func(a *domain.Activity) {
		a.TutorID = tutorID
		a.Published = false
	})

	// The owner sees everything.
	owned, err := svc.ListActivities(tutorContextFor(tutorID), domain.ActivityFilter{TutorID: tutorID})
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	// Everyone else only the published subset.
	visible, err := svc.ListActivities(context.Background(), domain.ActivityFilter{TutorID: tutorID})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, published.ID, visible[0].ID)
}

func TestUpdateActivity_NotFound(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewActivityService(store.Activities())

	err := svc.UpdateActivity(tutorContextFor(uuid.New()), &domain.Activity{ID: uuid.New()})
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestPublishUnpublishActivity(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewActivityService(store.Activities())
	activity := seedActivity(t, store, func(a *domain.Activity) {
		a.Published = false
	})
	ctx := tutorContextFor(activity.TutorID)

	require.NoError(t, svc.PublishActivity(ctx, activity.ID))
	stored, err := store.Activities().GetByID(context.Background(), activity.ID)
	require.NoError(t, err)
	assert.True(t, stored.Published)

	require.NoError(t, svc.UnpublishActivity(ctx, activity.ID))
	stored, err = store.Activities().GetByID(context.Background(), activity.ID)
	require.NoError(t, err)
	assert.False(t, stored.Published)

	err = svc.PublishActivity(tutorContextFor(uuid.New()), activity.ID)
	require.ErrorIs(t, err, ErrPermissionDenied)
}
