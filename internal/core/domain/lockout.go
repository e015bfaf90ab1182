package domain

import "time"

// LockoutRecord tracks failed authentication attempts for a single account.
// One row exists per account; the reaper resets counters instead of deleting
// the row, so the record acts as the canonical per-account lockout slot.
type LockoutRecord struct {
	AccountID      string
	FailedAttempts int
	LockoutEnd     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLocked reports whether the account is inside an active lockout window.
func (l LockoutRecord) IsLocked(at time.Time) bool {
	return at.Before(l.LockoutEnd)
}

// RegisterFailure increments the failure counter. Once the counter has
// reached maxAttempts the lockout window is re-extended from "at" on every
// further failure, not just on the crossing one.
func (l *LockoutRecord) RegisterFailure(at time.Time, maxAttempts int, window time.Duration) {
	l.FailedAttempts++
	if maxAttempts > 0 && l.FailedAttempts >= maxAttempts {
		l.LockoutEnd = at.Add(window)
	}
	l.UpdatedAt = at
}

// Reset clears the counter and pushes the lockout window into the past.
func (l *LockoutRecord) Reset(at time.Time) {
	l.FailedAttempts = 0
	l.LockoutEnd = at.Add(-time.Second)
	l.UpdatedAt = at
}
