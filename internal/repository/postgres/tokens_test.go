package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
	"github.com/osetrov/adminpanel-auth/internal/core/port"
	"github.com/osetrov/adminpanel-auth/internal/repository"
)

func newTokenRepoMock(t *testing.T) (pgxmock.PgxPoolIface, *TokenRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewTokenRepository(mock)
}

func TestCreateRefreshToken(t *testing.T) {
	mock, repo := newTokenRepoMock(t)

	now := time.Now().UTC()
	token := domain.RefreshToken{
		ID:          "tok-1",
		AccountID:   "acc-1",
		TokenHash:   "deadbeef",
		CreatedByIP: "203.0.113.7",
		CreatedAt:   now,
		ExpiresAt:   now.Add(168 * time.Hour),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(token.ID, token.AccountID, token.TokenHash, token.CreatedByIP,
			token.CreatedAt, token.ExpiresAt, (*time.Time)(nil), (*string)(nil), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.CreateRefreshToken(context.Background(), token)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRefreshTokenByHash(t *testing.T) {
	mock, repo := newTokenRepoMock(t)

	now := time.Now().UTC()
	revoked := now.Add(-time.Hour)
	ip := "198.51.100.4"
	successor := "cafebabe"

	rows := pgxmock.NewRows(refreshTokenColumns).
		AddRow("tok-1", "acc-1", "deadbeef", "203.0.113.7",
			now.Add(-2*time.Hour), now.Add(166*time.Hour), revoked, ip, successor)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, account_id, token_hash")).
		WithArgs("deadbeef").
		WillReturnRows(rows)

	token, err := repo.GetRefreshTokenByHash(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.ID)
	assert.True(t, token.IsRevoked())
	require.NotNil(t, token.ReplacedByHash)
	assert.Equal(t, successor, *token.ReplacedByHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRefreshTokenByHashNotFound(t *testing.T) {
	mock, repo := newTokenRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, account_id, token_hash")).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(refreshTokenColumns))

	_, err := repo.GetRefreshTokenByHash(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRefreshTokenReplacedLosesRace(t *testing.T) {
	mock, repo := newTokenRepoMock(t)

	// Zero rows affected means the guard excluded the row: it was already
	// revoked or already chained to another successor.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET replaced_by_hash")).
		WithArgs("cafebabe", "tok-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.MarkRefreshTokenReplaced(context.Background(), "tok-1", "cafebabe")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeRefreshToken(t *testing.T) {
	mock, repo := newTokenRepoMock(t)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at")).
		WithArgs(at, "203.0.113.7", "tok-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.RevokeRefreshToken(context.Background(), "tok-1", at, "203.0.113.7")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredRefreshTokens(t *testing.T) {
	mock, repo := newTokenRepoMock(t)

	cutoff := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens")).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 17))

	removed, err := repo.DeleteExpiredRefreshTokens(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 17, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	mock, repo := newTokenRepoMock(t)

	at := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at")).
		WithArgs(at, "203.0.113.7", "tok-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx port.TokenRepository) error {
		return tx.RevokeRefreshToken(context.Background(), "tok-1", at, "203.0.113.7")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	mock, repo := newTokenRepoMock(t)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(port.TokenRepository) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
