package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"activity_service/internal/domain"
)

type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	query := `
		INSERT INTO activities
			(id, tutor_id, title, description, version, submission_count,
			 max_attempts, opens_at, closes_at, late_allowed, late_penalty,
			 published, created_at, edited_at)
		VALUES ($1, $2, $3, $4, 1, 0, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate UUID: %w", err)
	}

	now := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		id,
		activity.TutorID,
		activity.Title,
		activity.Description,
		activity.MaxAttempts,
		activity.OpensAt,
		activity.ClosesAt,
		activity.LateAllowed,
		activity.LatePenalty,
		activity.Published,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}

	activity.ID = id
	activity.Version = 1
	activity.SubmissionCount = 0
	activity.CreatedAt = now
	activity.EditedAt = now
	return nil
}

func (r *ActivityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	query := `
		SELECT id, tutor_id, title, description, version, submission_count,
		       max_attempts, opens_at, closes_at, late_allowed, late_penalty,
		       published, created_at, edited_at
		FROM activities
		WHERE id = $1
	`

	var a domain.Activity
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.TutorID,
		&a.Title,
		&a.Description,
		&a.Version,
		&a.SubmissionCount,
		&a.MaxAttempts,
		&a.OpensAt,
		&a.ClosesAt,
		&a.LateAllowed,
		&a.LatePenalty,
		&a.Published,
		&a.CreatedAt,
		&a.EditedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return &a, nil
}

// UpdateMetadata touches descriptive fields only. Version and
// submission_count move exclusively through ConditionalIncrement and
// ReconcileCount.
func (r *ActivityRepository) UpdateMetadata(ctx context.Context, activity *domain.Activity) error {
	query := `
		UPDATE activities
		SET title = $1, description = $2, opens_at = $3, closes_at = $4,
		    late_allowed = $5, late_penalty = $6, edited_at = $7
		WHERE id = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		activity.Title,
		activity.Description,
		activity.OpensAt,
		activity.ClosesAt,
		activity.LateAllowed,
		activity.LatePenalty,
		time.Now(),
		activity.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ActivityRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	query := `UPDATE activities SET published = $1, edited_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, published, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set published: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConditionalIncrement is the sole serialization point of the submission
// path. Iff the stored version equals expectedVersion, the version steps by
// +1 (reservation, delta >= 0) or -1 (compensation, delta < 0) and
// submission_count moves by delta, in a single conditional UPDATE. On a
// mismatch nothing is written and ok is false; priorVersion then carries the
// currently stored version for error context only. A deleted activity also
// reports ok=false (priorVersion 0), costing the caller one retry round trip
// before its re-read surfaces not-found.
func (r *ActivityRepository) ConditionalIncrement(ctx context.Context, id uuid.UUID, expectedVersion, delta int64) (bool, int64, error) {
	step := int64(1)
	if delta < 0 {
		step = -1
	}

	query := `
		UPDATE activities
		SET version = version + $1, submission_count = submission_count + $2, edited_at = $3
		WHERE id = $4 AND version = $5
	`
	result, err := r.db.ExecContext(ctx, query, step, delta, time.Now(), id, expectedVersion)
	if err != nil {
		return false, 0, fmt.Errorf("conditional increment failed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return true, expectedVersion, nil
	}

	var current int64
	err = r.db.QueryRowContext(ctx, `SELECT version FROM activities WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, nil
		}
		return false, 0, nil //nolint:nilerr // diagnostic read, the conflict itself is the answer
	}
	return false, current, nil
}

// CountDrift returns ids of activities whose submission_count disagrees with
// the persisted submissions, the residue of compensations that failed.
func (r *ActivityRepository) CountDrift(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT a.id
		FROM activities a
		LEFT JOIN (
			SELECT activity_id, COUNT(*) AS cnt
			FROM submissions
			GROUP BY activity_id
		) s ON s.activity_id = a.id
		WHERE a.submission_count <> COALESCE(s.cnt, 0)
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query count drift: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan drifted activity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

// ReconcileCount recomputes submission_count from the submissions table in
// one statement and returns the corrected value.
func (r *ActivityRepository) ReconcileCount(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `
		UPDATE activities a
		SET submission_count = (
			SELECT COUNT(*) FROM submissions s WHERE s.activity_id = a.id
		), edited_at = $1
		WHERE a.id = $2
		RETURNING a.submission_count
	`

	var count int64
	err := r.db.QueryRowContext(ctx, query, time.Now(), id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to reconcile count: %w", err)
	}
	return count, nil
}

// List returns a tutor's activities, optionally narrowed to a published
// state.
func (r *ActivityRepository) List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.Activity, error) {
	query := `
		SELECT id, tutor_id, title, description, version, submission_count,
		       max_attempts, opens_at, closes_at, late_allowed, late_penalty,
		       published, created_at, edited_at
		FROM activities
		WHERE tutor_id = $1
	`
	args := []interface{}{filter.TutorID}
	if filter.Published != nil {
		query += ` AND published = $2`
		args = append(args, *filter.Published)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var activities []*domain.Activity
	for rows.Next() {
		var a domain.Activity
		err := rows.Scan(
			&a.ID,
			&a.TutorID,
			&a.Title,
			&a.Description,
			&a.Version,
			&a.SubmissionCount,
			&a.MaxAttempts,
			&a.OpensAt,
			&a.ClosesAt,
			&a.LateAllowed,
			&a.LatePenalty,
			&a.Published,
			&a.CreatedAt,
			&a.EditedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return activities, nil
}

func (r *ActivityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM activities WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
