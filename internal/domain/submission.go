package domain

import (
	"time"

	"github.com/google/uuid"
)

// Submission is created once by the submit coordinator and afterwards only
// mutated through its own version-gated grading update. The unique key is
// (ActivityID, StudentID, AttemptNumber): two concurrent submits that
// computed the same attempt number collide on insert and the loser is a
// duplicate, while sequential submits advance the attempt number up to the
// activity's quota.
type Submission struct {
	ID            uuid.UUID
	ActivityID    uuid.UUID
	StudentID     uuid.UUID
	AttemptNumber int32
	IsLate        bool

	// Version gates grading updates to this submission; it is independent of
	// the activity's version.
	Version int64

	Comment *string
	FileID  *uuid.UUID

	Score    *float64
	Feedback *string
	GradedAt *time.Time

	CreatedAt time.Time
	EditedAt  time.Time
}

// GradePatch is a partial grading update; nil fields are left untouched.
type GradePatch struct {
	Score    *float64
	Feedback *string
}
