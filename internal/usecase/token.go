package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
	"github.com/osetrov/adminpanel-auth/internal/core/port"
	"github.com/osetrov/adminpanel-auth/internal/infra/security"
	"github.com/osetrov/adminpanel-auth/internal/repository"
)

var (
	// ErrTokenNotFound indicates the presented refresh token is unknown.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrTokenInactive indicates the refresh token is expired, revoked, or
	// already rotated.
	ErrTokenInactive = errors.New("refresh token is not active")
)

const refreshTokenBytes = 32

// TokenPair carries both credentials issued for a session.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// TokenService issues access tokens, manages refresh token lifecycle and
// performs atomic rotation.
type TokenService struct {
	tokens          port.TokenRepository
	signer          *security.JWTSigner
	events          port.EventPublisher
	refreshTokenTTL time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

func NewTokenService(
	tokens port.TokenRepository,
	signer *security.JWTSigner,
	events port.EventPublisher,
	refreshTokenTTL time.Duration,
	log *zap.Logger,
) *TokenService {
	if refreshTokenTTL <= 0 {
		refreshTokenTTL = 168 * time.Hour
	}
	return &TokenService{
		tokens:          tokens,
		signer:          signer,
		events:          events,
		refreshTokenTTL: refreshTokenTTL,
		logger:          log,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// IssuePair mints an access token and a fresh refresh token for the account.
func (s *TokenService) IssuePair(ctx context.Context, account domain.Account, ip string) (*TokenPair, error) {
	accessToken, err := s.signer.Sign(account)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	now := s.now()
	rawRefresh, _, err := s.issueRefreshToken(ctx, s.tokens, account.ID, ip, now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          rawRefresh,
		AccessTokenExpiresAt:  now.Add(s.signer.AccessTokenTTL()),
		RefreshTokenExpiresAt: now.Add(s.refreshTokenTTL),
	}, nil
}

// ValidateRefreshToken resolves a raw refresh token to its active record.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, rawToken string) (*domain.RefreshToken, error) {
	token, err := s.tokens.GetRefreshTokenByHash(ctx, security.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	if !token.IsActive(s.now()) {
		return nil, ErrTokenInactive
	}
	return token, nil
}

// Rotate exchanges an active refresh token for a new token pair. The old
// token is revoked and chained to its successor in one transaction, so when
// two requests race on the same token exactly one of them succeeds and the
// other observes ErrTokenInactive.
func (s *TokenService) Rotate(ctx context.Context, account domain.Account, rawToken string, ip string) (*TokenPair, error) {
	old, err := s.ValidateRefreshToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if old.AccountID != account.ID {
		return nil, ErrTokenInactive
	}

	accessToken, err := s.signer.Sign(account)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	now := s.now()

	var (
		rawRefresh  string
		successorID string
	)
	err = s.tokens.InTx(ctx, func(tx port.TokenRepository) error {
		var issueErr error
		rawRefresh, successorID, issueErr = s.issueRefreshToken(ctx, tx, account.ID, ip, now)
		if issueErr != nil {
			return issueErr
		}

		// Chain to the successor before stamping revoked_at: the replace
		// update is guarded on revoked_at being unset, so revoking first
		// would void the old row inside this same transaction.
		if err := tx.MarkRefreshTokenReplaced(ctx, old.ID, security.HashToken(rawRefresh)); err != nil {
			return err
		}
		return tx.RevokeRefreshToken(ctx, old.ID, now, ip)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Guarded update touched zero rows: a concurrent rotation of the
			// same token won the race.
			return nil, ErrTokenInactive
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.publishRotated(ctx, account.ID, old.ID, successorID, ip, now)

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          rawRefresh,
		AccessTokenExpiresAt:  now.Add(s.signer.AccessTokenTTL()),
		RefreshTokenExpiresAt: now.Add(s.refreshTokenTTL),
	}, nil
}

// RevokeToken revokes a single refresh token, ending that session.
func (s *TokenService) RevokeToken(ctx context.Context, rawToken string, ip string) error {
	token, err := s.ValidateRefreshToken(ctx, rawToken)
	if err != nil {
		return err
	}

	if err := s.tokens.RevokeRefreshToken(ctx, token.ID, s.now(), ip); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInactive
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *TokenService) issueRefreshToken(ctx context.Context, repo port.TokenRepository, accountID, ip string, now time.Time) (raw string, id string, err error) {
	raw, err = security.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}

	token := domain.RefreshToken{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		TokenHash:   security.HashToken(raw),
		CreatedByIP: ip,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.refreshTokenTTL),
	}

	if err := repo.CreateRefreshToken(ctx, token); err != nil {
		return "", "", fmt.Errorf("store refresh token: %w", err)
	}
	return raw, token.ID, nil
}

func (s *TokenService) publishRotated(ctx context.Context, accountID, tokenID, successorID, ip string, at time.Time) {
	if s.events == nil {
		return
	}

	err := s.events.PublishTokenRotated(ctx, domain.TokenRotatedEvent{
		EventID:     uuid.NewString(),
		AccountID:   accountID,
		TokenID:     tokenID,
		SuccessorID: successorID,
		IP:          ip,
		At:          at,
	})
	if err != nil {
		s.logger.Warn("failed to publish token rotated event",
			zap.String("account_id", accountID),
			zap.Error(err))
	}
}
