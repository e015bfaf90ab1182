package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeToken(now time.Time) RefreshToken {
	return RefreshToken{
		ID:        "tok-1",
		AccountID: "acc-1",
		TokenHash: "hash",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestRefreshTokenLifecycleStates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := activeToken(now)

	assert.True(t, token.IsActive(now))
	assert.False(t, token.IsExpired(now))
	assert.False(t, token.IsRevoked())

	// Expiry boundary is exclusive: at exactly ExpiresAt the token is spent.
	assert.True(t, token.IsExpired(now.Add(time.Hour)))
	assert.False(t, token.IsActive(now.Add(time.Hour)))
}

func TestRevoke(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := activeToken(now)

	require.NoError(t, token.Revoke(now.Add(time.Minute), "203.0.113.7"))
	assert.True(t, token.IsRevoked())
	require.NotNil(t, token.RevokedByIP)
	assert.Equal(t, "203.0.113.7", *token.RevokedByIP)

	assert.ErrorIs(t, token.Revoke(now.Add(2*time.Minute), ""), ErrTokenAlreadyRevoked)
}

func TestRevokeExpiredToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := activeToken(now)

	assert.ErrorIs(t, token.Revoke(now.Add(2*time.Hour), ""), ErrTokenExpired)
	assert.False(t, token.IsRevoked())
}

func TestRevokeWithoutIP(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := activeToken(now)

	require.NoError(t, token.Revoke(now, ""))
	assert.Nil(t, token.RevokedByIP)
}

func TestReplace(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := activeToken(now)

	require.NoError(t, token.Replace("successor-hash"))
	require.NotNil(t, token.ReplacedByHash)
	assert.Equal(t, "successor-hash", *token.ReplacedByHash)

	assert.ErrorIs(t, token.Replace("  "), ErrEmptySuccessor)
}
