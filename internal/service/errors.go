package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrActivityNotFound         = errors.New("activity not found")
	ErrSubmissionNotFound       = errors.New("submission not found")
	ErrMaxAttemptsExceeded      = errors.New("max attempts exceeded")
	ErrNotYetOpen               = errors.New("activity not yet open")
	ErrLateSubmissionRejected   = errors.New("late submission rejected")
	ErrNotPublished             = errors.New("activity not published")
	ErrDuplicateAttempt         = errors.New("duplicate attempt")
	ErrVersionConflict          = errors.New("version conflict")
	ErrVersionConflictExhausted = errors.New("version conflict retries exhausted")
	ErrStoreUnavailable         = errors.New("store unavailable")
	ErrPermissionDenied         = errors.New("permission denied")
	ErrInvalidArgument          = errors.New("invalid argument")
)

// ConflictError is returned when the retry budget runs out. It carries
// enough context for the caller to build a user-facing message and unwraps
// to ErrVersionConflictExhausted for classification.
type ConflictError struct {
	ActivityID      uuid.UUID
	StudentID       uuid.UUID
	ExpectedVersion int64
	ObservedVersion int64
	RetriesUsed     int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"version conflict on activity %s for student %s after %d retries (expected version %d, observed %d)",
		e.ActivityID, e.StudentID, e.RetriesUsed, e.ExpectedVersion, e.ObservedVersion,
	)
}

func (e *ConflictError) Unwrap() error {
	return ErrVersionConflictExhausted
}

// GradeConflictError reports a lost version-gated grading update on a
// submission. It unwraps to ErrVersionConflict.
type GradeConflictError struct {
	SubmissionID    uuid.UUID
	ExpectedVersion int64
}

func (e *GradeConflictError) Error() string {
	return fmt.Sprintf("grading conflict on submission %s (expected version %d)", e.SubmissionID, e.ExpectedVersion)
}

func (e *GradeConflictError) Unwrap() error {
	return ErrVersionConflict
}

// ToGRPCError is the error-code contract for transports consuming this core.
// Each business rejection gets a distinct code so callers can tell the user
// why a submission was refused, not just that it failed.
func ToGRPCError(err error) error {
	switch {
	case errors.Is(err, ErrActivityNotFound), errors.Is(err, ErrSubmissionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrMaxAttemptsExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, ErrNotYetOpen), errors.Is(err, ErrLateSubmissionRejected), errors.Is(err, ErrNotPublished):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrDuplicateAttempt):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrVersionConflictExhausted), errors.Is(err, ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
