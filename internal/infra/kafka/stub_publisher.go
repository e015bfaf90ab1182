package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
	"github.com/osetrov/adminpanel-auth/internal/core/port"
)

// StubPublisher logs events instead of producing them. Used when Kafka
// is disabled in configuration.
type StubPublisher struct {
	logger *zap.Logger
}

func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (s *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	s.logger.Debug("event publishing disabled, dropping login_succeeded",
		zap.String("account_id", event.AccountID))
	return nil
}

func (s *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	s.logger.Debug("event publishing disabled, dropping login_failed",
		zap.String("account_id", event.AccountID),
		zap.Int("failed_attempts", event.FailedAttempts))
	return nil
}

func (s *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	s.logger.Debug("event publishing disabled, dropping account_locked",
		zap.String("account_id", event.AccountID))
	return nil
}

func (s *StubPublisher) PublishTokenRotated(_ context.Context, event domain.TokenRotatedEvent) error {
	s.logger.Debug("event publishing disabled, dropping token_rotated",
		zap.String("account_id", event.AccountID),
		zap.String("token_id", event.TokenID))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
