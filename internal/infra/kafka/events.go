package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
	"github.com/osetrov/adminpanel-auth/internal/core/port"
	"github.com/osetrov/adminpanel-auth/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	eventTypeLoginSucceeded = "auth.login_succeeded"
	eventTypeLoginFailed    = "auth.login_failed"
	eventTypeAccountLocked  = "auth.account_locked"
	eventTypeTokenRotated   = "auth.token_rotated"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed security event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	AccountID string            `json:"account_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(accountID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginSucceeded emits a login success event.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	return p.publish(ctx, event.EventID, eventTypeLoginSucceeded, event.AccountID, event.At, map[string]any{
		"ip": event.IP,
	})
}

// PublishLoginFailed emits a failed attempt event with the running counter.
func (p *EventPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	return p.publish(ctx, event.EventID, eventTypeLoginFailed, event.AccountID, event.At, map[string]any{
		"ip":              event.IP,
		"failed_attempts": event.FailedAttempts,
	})
}

// PublishAccountLocked emits a lockout event.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	return p.publish(ctx, event.EventID, eventTypeAccountLocked, event.AccountID, event.At, map[string]any{
		"failed_attempts": event.FailedAttempts,
		"locked_until":    event.LockedUntil.UTC(),
	})
}

// PublishTokenRotated emits a refresh token rotation event.
func (p *EventPublisher) PublishTokenRotated(ctx context.Context, event domain.TokenRotatedEvent) error {
	return p.publish(ctx, event.EventID, eventTypeTokenRotated, event.AccountID, event.At, map[string]any{
		"token_id":     event.TokenID,
		"successor_id": event.SuccessorID,
		"ip":           event.IP,
	})
}

var _ port.EventPublisher = (*EventPublisher)(nil)
