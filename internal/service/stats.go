package service

import "sync/atomic"

// SubmitStats counts submit outcomes. It is constructor-injected rather than
// package-global so tests can assert on isolated instances, and it never
// gates behavior. Reset is an explicit operator action.
type SubmitStats struct {
	totalAttempts         atomic.Int64
	successfulSubmissions atomic.Int64
	conflicts             atomic.Int64
	retriesSucceeded      atomic.Int64
	retriesFailed         atomic.Int64
}

func NewSubmitStats() *SubmitStats {
	return &SubmitStats{}
}

// StatsSnapshot is a point-in-time copy with derived rates.
type StatsSnapshot struct {
	TotalAttempts         int64   `json:"total_attempts"`
	SuccessfulSubmissions int64   `json:"successful_submissions"`
	Conflicts             int64   `json:"conflicts"`
	RetriesSucceeded      int64   `json:"retries_succeeded"`
	RetriesFailed         int64   `json:"retries_failed"`
	ConflictRate          float64 `json:"conflict_rate"`
	RetrySuccessRate      float64 `json:"retry_success_rate"`
}

func (s *SubmitStats) RecordAttempt() {
	s.totalAttempts.Add(1)
}

// RecordSuccess counts a completed submission; one that needed conflict
// retries also counts toward retriesSucceeded.
func (s *SubmitStats) RecordSuccess(retriesUsed int) {
	s.successfulSubmissions.Add(1)
	if retriesUsed > 0 {
		s.retriesSucceeded.Add(1)
	}
}

func (s *SubmitStats) RecordConflict() {
	s.conflicts.Add(1)
}

func (s *SubmitStats) RecordRetriesExhausted() {
	s.retriesFailed.Add(1)
}

func (s *SubmitStats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		TotalAttempts:         s.totalAttempts.Load(),
		SuccessfulSubmissions: s.successfulSubmissions.Load(),
		Conflicts:             s.conflicts.Load(),
		RetriesSucceeded:      s.retriesSucceeded.Load(),
		RetriesFailed:         s.retriesFailed.Load(),
	}
	if snap.TotalAttempts > 0 {
		snap.ConflictRate = float64(snap.Conflicts) / float64(snap.TotalAttempts)
	}
	if snap.Conflicts > 0 {
		snap.RetrySuccessRate = float64(snap.RetriesSucceeded) / float64(snap.Conflicts)
	}
	return snap
}

func (s *SubmitStats) Reset() {
	s.totalAttempts.Store(0)
	s.successfulSubmissions.Store(0)
	s.conflicts.Store(0)
	s.retriesSucceeded.Store(0)
	s.retriesFailed.Store(0)
}
