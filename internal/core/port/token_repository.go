package port

import (
	"context"
	"time"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
)

// TokenRepository manages refresh token records.
//
// RevokeRefreshToken and MarkRefreshTokenReplaced only touch rows that have
// not already been revoked/replaced; they report repository.ErrNotFound when
// the guard excludes the row, which is how concurrent rotations lose the race.
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	MarkRefreshTokenReplaced(ctx context.Context, id string, successorHash string) error
	RevokeRefreshToken(ctx context.Context, id string, at time.Time, ip string) error
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int, error)

	// InTx runs fn against a repository view bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise,
	// including on context cancellation.
	InTx(ctx context.Context, fn func(TokenRepository) error) error
}
