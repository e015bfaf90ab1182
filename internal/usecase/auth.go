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
	"github.com/osetrov/adminpanel-auth/internal/infra/logger"
	"github.com/osetrov/adminpanel-auth/internal/infra/security"
	"github.com/osetrov/adminpanel-auth/internal/repository"
)

var (
	// ErrInvalidCredentials covers unknown account, wrong password, and an
	// active lockout. Callers surface them identically so the response does
	// not leak which one happened.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrExpiredAccessToken indicates the bearer token elapsed its lifetime.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInvalidAccessToken indicates the bearer token failed validation.
	ErrInvalidAccessToken = errors.New("invalid access token")
)

// AuthService orchestrates login and refresh across the lockout guard,
// credential verification and token issuance.
type AuthService struct {
	accounts port.AccountRepository
	tokens   *TokenService
	lockouts *LockoutService
	signer   *security.JWTSigner
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(
	accounts port.AccountRepository,
	tokens *TokenService,
	lockouts *LockoutService,
	signer *security.JWTSigner,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		lockouts: lockouts,
		signer:   signer,
		events:   events,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Login authenticates an email/password pair and issues a token pair. A
// locked account is rejected before the password is checked, so the correct
// password does not unlock it early, and every rejection reads the same to
// the caller.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*domain.Account, *TokenPair, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("login rejected, unknown account",
				zap.String("email", logger.MaskEmail(email)),
				zap.String("ip", logger.MaskIP(ip)))
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("lookup account: %w", err)
	}

	if err := s.lockouts.Check(ctx, account.ID); err != nil {
		if errors.Is(err, ErrAccountLocked) {
			s.logger.Warn("login rejected, account locked",
				zap.String("account_id", account.ID),
				zap.String("ip", logger.MaskIP(ip)))
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	match, err := security.VerifyPassword(password, account.PasswordHash.String())
	if err != nil {
		return nil, nil, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		record, recErr := s.lockouts.RecordFailure(ctx, account.ID)
		if recErr != nil {
			s.logger.Error("failed to record login failure",
				zap.String("account_id", account.ID),
				zap.Error(recErr))
		}

		attempts := 0
		if record != nil {
			attempts = record.FailedAttempts
		}
		s.logger.Info("login rejected, wrong password",
			zap.String("account_id", account.ID),
			zap.Int("failed_attempts", attempts),
			zap.String("ip", logger.MaskIP(ip)))
		s.publishLoginFailed(ctx, account, ip, attempts)

		return nil, nil, ErrInvalidCredentials
	}

	if err := s.lockouts.RecordSuccess(ctx, account.ID); err != nil {
		s.logger.Error("failed to reset lockout counter",
			zap.String("account_id", account.ID),
			zap.Error(err))
	}

	pair, err := s.tokens.IssuePair(ctx, *account, ip)
	if err != nil {
		return nil, nil, err
	}

	s.publishLoginSucceeded(ctx, account, ip)
	s.logger.Info("login succeeded",
		zap.String("account_id", account.ID),
		zap.String("ip", logger.MaskIP(ip)))

	return account, pair, nil
}

// Refresh exchanges a refresh token for a new pair via atomic rotation.
func (s *AuthService) Refresh(ctx context.Context, rawToken, ip string) (*domain.Account, *TokenPair, error) {
	token, err := s.tokens.ValidateRefreshToken(ctx, rawToken)
	if err != nil {
		return nil, nil, err
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Account removed since the token was issued.
			return nil, nil, ErrTokenInactive
		}
		return nil, nil, fmt.Errorf("lookup account: %w", err)
	}

	pair, err := s.tokens.Rotate(ctx, *account, rawToken, ip)
	if err != nil {
		return nil, nil, err
	}
	return account, pair, nil
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, rawToken, ip string) error {
	return s.tokens.RevokeToken(ctx, rawToken, ip)
}

// ParseAccessToken validates a bearer token and returns its claims.
func (s *AuthService) ParseAccessToken(token string) (*security.AccessTokenClaims, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, security.ErrAccessTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// CheckLockout reports whether the account is currently locked out.
func (s *AuthService) CheckLockout(ctx context.Context, accountID string) error {
	return s.lockouts.Check(ctx, accountID)
}

func (s *AuthService) publishLoginSucceeded(ctx context.Context, account *domain.Account, ip string) {
	if s.events == nil {
		return
	}

	err := s.events.PublishLoginSucceeded(ctx, domain.LoginSucceededEvent{
		EventID:   uuid.NewString(),
		AccountID: account.ID,
		Email:     account.Email.String(),
		IP:        ip,
		At:        s.now(),
	})
	if err != nil {
		s.logger.Warn("failed to publish login succeeded event",
			zap.String("account_id", account.ID),
			zap.Error(err))
	}
}

func (s *AuthService) publishLoginFailed(ctx context.Context, account *domain.Account, ip string, attempts int) {
	if s.events == nil {
		return
	}

	err := s.events.PublishLoginFailed(ctx, domain.LoginFailedEvent{
		EventID:        uuid.NewString(),
		AccountID:      account.ID,
		Email:          account.Email.String(),
		IP:             ip,
		FailedAttempts: attempts,
		At:             s.now(),
	})
	if err != nil {
		s.logger.Warn("failed to publish login failed event",
			zap.String("account_id", account.ID),
			zap.Error(err))
	}
}
