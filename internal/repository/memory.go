package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"activity_service/internal/domain"
)

// MemoryStore keeps activities and submissions in process with the same
// conditional-write semantics as the Postgres repositories. The mutex plays
// the role the conditional UPDATE plays in Postgres: every check-and-mutate
// happens under one critical section. It backs the concurrency tests and
// local development; access goes through the Activities and Submissions
// facades so both sides satisfy the same interfaces as the SQL repos.
type MemoryStore struct {
	mu          sync.Mutex
	activities  map[uuid.UUID]domain.Activity
	submissions map[uuid.UUID]domain.Submission
	attemptKeys map[attemptKey]uuid.UUID
}

type attemptKey struct {
	activityID    uuid.UUID
	studentID     uuid.UUID
	attemptNumber int32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		activities:  map[uuid.UUID]domain.Activity{},
		submissions: map[uuid.UUID]domain.Submission{},
		attemptKeys: map[attemptKey]uuid.UUID{},
	}
}

// Activities returns the activity-store view of the shared state.
func (m *MemoryStore) Activities() *MemoryActivityStore {
	return &MemoryActivityStore{store: m}
}

// Submissions returns the submission-store view of the shared state.
func (m *MemoryStore) Submissions() *MemorySubmissionStore {
	return &MemorySubmissionStore{store: m}
}

type MemoryActivityStore struct {
	store *MemoryStore
}

func (s *MemoryActivityStore) Create(ctx context.Context, activity *domain.Activity) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	now := time.Now()
	activity.ID = id
	activity.Version = 1
	activity.SubmissionCount = 0
	activity.CreatedAt = now
	activity.EditedAt = now

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.activities[id] = *activity
	return nil
}

func (s *MemoryActivityStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	a, ok := s.store.activities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryActivityStore) UpdateMetadata(ctx context.Context, activity *domain.Activity) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	stored, ok := s.store.activities[activity.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Title = activity.Title
	stored.Description = activity.Description
	stored.OpensAt = activity.OpensAt
	stored.ClosesAt = activity.ClosesAt
	stored.LateAllowed = activity.LateAllowed
	stored.LatePenalty = activity.LatePenalty
	stored.EditedAt = time.Now()
	s.store.activities[activity.ID] = stored
	return nil
}

func (s *MemoryActivityStore) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	stored, ok := s.store.activities[id]
	if !ok {
		return ErrNotFound
	}
	stored.Published = published
	stored.EditedAt = time.Now()
	s.store.activities[id] = stored
	return nil
}

func (s *MemoryActivityStore) List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.Activity, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var activities []*domain.Activity
	for _, a := range s.store.activities {
		if a.TutorID != filter.TutorID {
			continue
		}
		if filter.Published != nil && a.Published != *filter.Published {
			continue
		}
		copied := a
		activities = append(activities, &copied)
	}
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].CreatedAt.Before(activities[j].CreatedAt)
	})
	return activities, nil
}

func (s *MemoryActivityStore) ConditionalIncrement(ctx context.Context, id uuid.UUID, expectedVersion, delta int64) (bool, int64, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	stored, ok := s.store.activities[id]
	if !ok {
		// Same contract as the SQL store: a vanished row is just a failed
		// conditional write; the caller's next read reports not-found.
		return false, 0, nil
	}
	if stored.Version != expectedVersion {
		return false, stored.Version, nil
	}

	step := int64(1)
	if delta < 0 {
		step = -1
	}
	stored.Version += step
	stored.SubmissionCount += delta
	stored.EditedAt = time.Now()
	s.store.activities[id] = stored
	return true, expectedVersion, nil
}

func (s *MemoryActivityStore) CountDrift(ctx context.Context) ([]uuid.UUID, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	counts := map[uuid.UUID]int64{}
	for _, sub := range s.store.submissions {
		counts[sub.ActivityID]++
	}

	var ids []uuid.UUID
	for id, a := range s.store.activities {
		if a.SubmissionCount != counts[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryActivityStore) ReconcileCount(ctx context.Context, id uuid.UUID) (int64, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	stored, ok := s.store.activities[id]
	if !ok {
		return 0, ErrNotFound
	}

	var count int64
	for _, sub := range s.store.submissions {
		if sub.ActivityID == id {
			count++
		}
	}
	stored.SubmissionCount = count
	stored.EditedAt = time.Now()
	s.store.activities[id] = stored
	return count, nil
}

type MemorySubmissionStore struct {
	store *MemoryStore
}

func (s *MemorySubmissionStore) Create(ctx context.Context, submission *domain.Submission) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	key := attemptKey{
		activityID:    submission.ActivityID,
		studentID:     submission.StudentID,
		attemptNumber: submission.AttemptNumber,
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if _, exists := s.store.attemptKeys[key]; exists {
		return ErrDuplicateAttempt
	}

	now := time.Now()
	submission.ID = id
	submission.Version = 1
	submission.CreatedAt = now
	submission.EditedAt = now

	s.store.submissions[id] = *submission
	s.store.attemptKeys[key] = id
	return nil
}

func (s *MemorySubmissionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	sub, ok := s.store.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sub, nil
}

func (s *MemorySubmissionStore) CountByStudent(ctx context.Context, activityID, studentID uuid.UUID) (int32, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var count int32
	for _, sub := range s.store.submissions {
		if sub.ActivityID == activityID && sub.StudentID == studentID {
			count++
		}
	}
	return count, nil
}

func (s *MemorySubmissionStore) ListByActivity(ctx context.Context, activityID uuid.UUID) ([]*domain.Submission, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var submissions []*domain.Submission
	for _, sub := range s.store.submissions {
		if sub.ActivityID == activityID {
			copied := sub
			submissions = append(submissions, &copied)
		}
	}
	return submissions, nil
}

func (s *MemorySubmissionStore) UpdateGradeVersioned(ctx context.Context, id uuid.UUID, patch domain.GradePatch, expectedVersion int64) (bool, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	stored, ok := s.store.submissions[id]
	if !ok {
		return false, ErrNotFound
	}
	if stored.Version != expectedVersion {
		return false, nil
	}

	now := time.Now()
	if patch.Score != nil {
		stored.Score = patch.Score
	}
	if patch.Feedback != nil {
		stored.Feedback = patch.Feedback
	}
	stored.GradedAt = &now
	stored.Version++
	stored.EditedAt = now
	s.store.submissions[id] = stored
	return true, nil
}
