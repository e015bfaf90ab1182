package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrTokenAlreadyRevoked indicates an attempt to revoke a token twice.
	ErrTokenAlreadyRevoked = errors.New("refresh token already revoked")
	// ErrTokenExpired indicates the token elapsed its validity window.
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrEmptySuccessor indicates Replace was called without a successor hash.
	ErrEmptySuccessor = errors.New("successor token hash is empty")
)

// RefreshToken represents a long-lived opaque credential with rotation support.
// The raw token value never touches storage; only its SHA-256 hash does.
type RefreshToken struct {
	ID             string
	AccountID      string
	TokenHash      string
	CreatedByIP    string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	RevokedByIP    *string
	ReplacedByHash *string
}

// IsExpired reports whether the token has elapsed its validity window.
func (t RefreshToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsRevoked reports whether the token has been explicitly revoked.
func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive returns true when the token can still be presented for rotation.
func (t RefreshToken) IsActive(at time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(at)
}

// Revoke marks the token as revoked, recording the caller's IP.
// A token that is already revoked or already expired cannot be revoked again.
func (t *RefreshToken) Revoke(at time.Time, ip string) error {
	if t.IsRevoked() {
		return ErrTokenAlreadyRevoked
	}
	if t.IsExpired(at) {
		return ErrTokenExpired
	}

	timeCopy := at
	t.RevokedAt = &timeCopy
	if ip != "" {
		ipCopy := ip
		t.RevokedByIP = &ipCopy
	}
	return nil
}

// Replace chains the token to its successor for audit of rotation lineage.
func (t *RefreshToken) Replace(successorHash string) error {
	if strings.TrimSpace(successorHash) == "" {
		return ErrEmptySuccessor
	}

	hashCopy := successorHash
	t.ReplacedByHash = &hashCopy
	return nil
}
