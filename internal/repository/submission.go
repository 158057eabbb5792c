package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"activity_service/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateAttempt = errors.New("duplicate attempt")
)

const uniqueViolation = "23505"

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create persists a submission with a generated id and version 1. A clash on
// the (activity_id, student_id, attempt_number) unique index surfaces as
// ErrDuplicateAttempt so the coordinator can distinguish a lost duplicate
// race from a store failure.
func (r *SubmissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	query := `
		INSERT INTO submissions
			(id, activity_id, student_id, attempt_number, is_late, version,
			 comment, file_id, created_at, edited_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7, $8, $9)
	`

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		id,
		submission.ActivityID,
		submission.StudentID,
		submission.AttemptNumber,
		submission.IsLate,
		submission.Comment,
		submission.FileID,
		now,
		now,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateAttempt
		}
		return err
	}

	submission.ID = id
	submission.Version = 1
	submission.CreatedAt = now
	submission.EditedAt = now
	return nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `
		SELECT id, activity_id, student_id, attempt_number, is_late, version,
		       comment, file_id, score, feedback, graded_at, created_at, edited_at
		FROM submissions
		WHERE id = $1
	`

	var s domain.Submission
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.ActivityID,
		&s.StudentID,
		&s.AttemptNumber,
		&s.IsLate,
		&s.Version,
		&s.Comment,
		&s.FileID,
		&s.Score,
		&s.Feedback,
		&s.GradedAt,
		&s.CreatedAt,
		&s.EditedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) CountByStudent(ctx context.Context, activityID, studentID uuid.UUID) (int32, error) {
	query := `
		SELECT COUNT(*) FROM submissions
		WHERE activity_id = $1 AND student_id = $2
	`

	var count int32
	if err := r.db.QueryRowContext(ctx, query, activityID, studentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

func (r *SubmissionRepository) ListByActivity(ctx context.Context, activityID uuid.UUID) ([]*domain.Submission, error) {
	query := `
		SELECT id, activity_id, student_id, attempt_number, is_late, version,
		       comment, file_id, score, feedback, graded_at, created_at, edited_at
		FROM submissions
		WHERE activity_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var submissions []*domain.Submission
	for rows.Next() {
		var s domain.Submission
		err := rows.Scan(
			&s.ID,
			&s.ActivityID,
			&s.StudentID,
			&s.AttemptNumber,
			&s.IsLate,
			&s.Version,
			&s.Comment,
			&s.FileID,
			&s.Score,
			&s.Feedback,
			&s.GradedAt,
			&s.CreatedAt,
			&s.EditedAt,
		)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return submissions, nil
}

// UpdateGradeVersioned applies a grading patch iff the stored version equals
// expectedVersion, bumping the submission's own version by 1. It reports
// ok=false on a version mismatch and ErrNotFound when the submission does
// not exist at all.
func (r *SubmissionRepository) UpdateGradeVersioned(ctx context.Context, id uuid.UUID, patch domain.GradePatch, expectedVersion int64) (bool, error) {
	query := `
		UPDATE submissions
		SET score = COALESCE($1, score),
		    feedback = COALESCE($2, feedback),
		    graded_at = $3,
		    version = version + 1,
		    edited_at = $3
		WHERE id = $4 AND version = $5
	`

	result, err := r.db.ExecContext(ctx, query, patch.Score, patch.Feedback, time.Now(), id, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to update grade: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return true, nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM submissions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check submission: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}
