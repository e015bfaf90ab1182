package domain

import "time"

// LoginSucceededEvent is emitted after credentials verify and tokens issue.
type LoginSucceededEvent struct {
	EventID   string
	AccountID string
	Email     string
	IP        string
	At        time.Time
}

// LoginFailedEvent is emitted for every recorded failed authentication attempt.
type LoginFailedEvent struct {
	EventID        string
	AccountID      string
	Email          string
	IP             string
	FailedAttempts int
	At             time.Time
}

// AccountLockedEvent is emitted when a failure pushes an account into lockout.
type AccountLockedEvent struct {
	EventID        string
	AccountID      string
	FailedAttempts int
	LockedUntil    time.Time
	At             time.Time
}

// TokenRotatedEvent is emitted when a refresh token is exchanged for a new pair.
type TokenRotatedEvent struct {
	EventID     string
	AccountID   string
	TokenID     string
	SuccessorID string
	IP          string
	At          time.Time
}
