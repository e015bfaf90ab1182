package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
	"github.com/osetrov/adminpanel-auth/internal/core/port"
	"github.com/osetrov/adminpanel-auth/internal/repository"
)

const refreshTokensTable = "refresh_tokens"

var refreshTokenColumns = []string{
	"id",
	"account_id",
	"token_hash",
	"created_by_ip",
	"created_at",
	"expires_at",
	"revoked_at",
	"revoked_by_ip",
	"replaced_by_hash",
}

// TokenRepository is the PostgreSQL implementation of port.TokenRepository.
type TokenRepository struct {
	db pgExecutor
}

func NewTokenRepository(db pgExecutor) *TokenRepository {
	return &TokenRepository{db: db}
}

// WithTx returns a repository view bound to the given transaction.
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	return &TokenRepository{db: tx}
}

// InTx runs fn inside a single transaction. Guarded updates inside fn
// returning repository.ErrNotFound roll the whole transaction back, which
// is what discards the loser's inserts on a concurrent rotation.
func (r *TokenRepository) InTx(ctx context.Context, fn func(port.TokenRepository) error) error {
	return runInTx(ctx, r.db, func(tx pgExecutor) error {
		return fn(&TokenRepository{db: tx})
	})
}

func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error {
	query, args, err := psql.
		Insert(refreshTokensTable).
		Columns(refreshTokenColumns...).
		Values(
			token.ID,
			token.AccountID,
			token.TokenHash,
			token.CreatedByIP,
			token.CreatedAt,
			token.ExpiresAt,
			token.RevokedAt,
			token.RevokedByIP,
			token.ReplacedByHash,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	query, args, err := psql.
		Select(refreshTokenColumns...).
		From(refreshTokensTable).
		Where(sq.Eq{"token_hash": hash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token query: %w", err)
	}

	row := r.db.QueryRow(ctx, query, args...)
	token, err := scanRefreshToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select refresh token by hash: %w", err)
	}
	return token, nil
}

// MarkRefreshTokenReplaced chains a token to its successor. The guards on
// revoked_at and replaced_by_hash mean only one concurrent rotation can win.
func (r *TokenRepository) MarkRefreshTokenReplaced(ctx context.Context, id string, successorHash string) error {
	query, args, err := psql.
		Update(refreshTokensTable).
		Set("replaced_by_hash", successorHash).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"revoked_at": nil}).
		Where(sq.Eq{"replaced_by_hash": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark replaced query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark refresh token replaced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RevokeRefreshToken stamps revocation on a not-yet-revoked token.
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, id string, at time.Time, ip string) error {
	builder := psql.
		Update(refreshTokensTable).
		Set("revoked_at", at).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"revoked_at": nil})
	if ip != "" {
		builder = builder.Set("revoked_by_ip", ip)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build revoke token query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteExpiredRefreshTokens removes tokens whose validity window ended
// before the cutoff, revoked or not, and returns the number of rows removed.
func (r *TokenRepository) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int, error) {
	query, args, err := psql.
		Delete(refreshTokensTable).
		Where(sq.LtOrEq{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired tokens query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRefreshToken(row pgx.Row) (*domain.RefreshToken, error) {
	var (
		token          domain.RefreshToken
		revokedAt      sql.NullTime
		revokedByIP    sql.NullString
		replacedByHash sql.NullString
	)

	err := row.Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&token.CreatedByIP,
		&token.CreatedAt,
		&token.ExpiresAt,
		&revokedAt,
		&revokedByIP,
		&replacedByHash,
	)
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}
	if revokedByIP.Valid {
		token.RevokedByIP = &revokedByIP.String
	}
	if replacedByHash.Valid {
		token.ReplacedByHash = &replacedByHash.String
	}
	return &token, nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
