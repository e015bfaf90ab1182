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
	"github.com/osetrov/adminpanel-auth/internal/infra/config"
	"github.com/osetrov/adminpanel-auth/internal/repository"
)

// ErrAccountLocked indicates the account is inside an active lockout window.
var ErrAccountLocked = errors.New("account is locked")

// LockoutService drives the failed-attempt counter state machine. When the
// guard is disabled every method is a no-op, so callers never branch on the
// setting themselves.
type LockoutService struct {
	lockouts port.LockoutRepository
	events   port.EventPublisher
	cfg      config.LockoutSettings
	logger   *zap.Logger
	now      func() time.Time
}

func NewLockoutService(
	lockouts port.LockoutRepository,
	events port.EventPublisher,
	cfg config.LockoutSettings,
	log *zap.Logger,
) *LockoutService {
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = 5
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 15 * time.Minute
	}
	return &LockoutService{
		lockouts: lockouts,
		events:   events,
		cfg:      cfg,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *LockoutService) WithClock(clock func() time.Time) *LockoutService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Check returns ErrAccountLocked while the account's window is active. An
// expired window that has not been reaped yet does not block.
func (s *LockoutService) Check(ctx context.Context, accountID string) error {
	if !s.cfg.Enabled {
		return nil
	}

	record, err := s.lockouts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup lockout record: %w", err)
	}

	if record.IsLocked(s.now()) {
		return ErrAccountLocked
	}
	return nil
}

// RecordFailure registers one failed attempt and returns the updated record.
// Crossing the threshold emits an account locked event.
func (s *LockoutService) RecordFailure(ctx context.Context, accountID string) (*domain.LockoutRecord, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}

	now := s.now()
	record, err := s.lockouts.RecordFailure(ctx, accountID, now, s.cfg.MaxFailedAttempts, s.cfg.Duration)
	if err != nil {
		return nil, fmt.Errorf("record failed attempt: %w", err)
	}

	if record.FailedAttempts == s.cfg.MaxFailedAttempts {
		s.logger.Warn("account locked after repeated failures",
			zap.String("account_id", accountID),
			zap.Int("failed_attempts", record.FailedAttempts),
			zap.Time("locked_until", record.LockoutEnd))
		s.publishLocked(ctx, record, now)
	}
	return record, nil
}

// RecordSuccess resets the counter after a successful authentication.
func (s *LockoutService) RecordSuccess(ctx context.Context, accountID string) error {
	if !s.cfg.Enabled {
		return nil
	}

	if err := s.lockouts.Reset(ctx, accountID, s.now()); err != nil {
		return fmt.Errorf("reset lockout record: %w", err)
	}
	return nil
}

// Clear is the administrative unlock.
func (s *LockoutService) Clear(ctx context.Context, accountID string) error {
	if !s.cfg.Enabled {
		return nil
	}

	if err := s.lockouts.Reset(ctx, accountID, s.now()); err != nil {
		return fmt.Errorf("clear lockout record: %w", err)
	}
	return nil
}

func (s *LockoutService) publishLocked(ctx context.Context, record *domain.LockoutRecord, at time.Time) {
	if s.events == nil {
		return
	}

	err := s.events.PublishAccountLocked(ctx, domain.AccountLockedEvent{
		EventID:        uuid.NewString(),
		AccountID:      record.AccountID,
		FailedAttempts: record.FailedAttempts,
		LockedUntil:    record.LockoutEnd,
		At:             at,
	})
	if err != nil {
		s.logger.Warn("failed to publish account locked event",
			zap.String("account_id", record.AccountID),
			zap.Error(err))
	}
}
