package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activity is the contended resource. Version and SubmissionCount are owned
// by the submission path and move only through the repository's conditional
// increment; everything else is plain metadata.
type Activity struct {
	ID          uuid.UUID
	TutorID     uuid.UUID
	Title       *string
	Description *string

	Version         int64
	SubmissionCount int64

	MaxAttempts int32
	OpensAt     *time.Time
	ClosesAt    *time.Time
	LateAllowed bool
	LatePenalty float64
	Published   bool

	CreatedAt time.Time
	EditedAt  time.Time
}

// IsLateAt reports whether a submission made at the given instant falls past
// the close of the availability window. An activity without a close date is
// never late.
func (a *Activity) IsLateAt(at time.Time) bool {
	return a.ClosesAt != nil && at.After(*a.ClosesAt)
}

// IsOpenAt reports whether the availability window has opened at the given
// instant. An activity without an open date is open immediately.
func (a *Activity) IsOpenAt(at time.Time) bool {
	return a.OpensAt == nil || !at.Before(*a.OpensAt)
}

type ActivityFilter struct {
	TutorID   uuid.UUID
	Published *bool
}
