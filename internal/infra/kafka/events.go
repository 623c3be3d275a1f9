package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
	"github.com/arklim/authcore/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID     string           `json:"event_id"`
	EventType   string           `json:"event_type"`
	PrincipalID string           `json:"principal_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version"`
	Payload     any              `json:"payload"`
	Metadata    envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, principalID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	envelope := eventEnvelope{
		EventID:     id,
		EventType:   eventType,
		PrincipalID: principalID,
		Timestamp:   ts.UTC(),
		Version:     schemaVersion,
		Payload:     payload,
		Metadata:    metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(principalID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginAttempt publishes auth.login.attempt events.
func (p *EventPublisher) PublishLoginAttempt(ctx context.Context, event domain.LoginAttemptEvent) error {
	payload := struct {
		PrincipalID string         `json:"principal_id,omitempty"`
		Identifier  string         `json:"identifier"`
		Succeeded   bool           `json:"succeeded"`
		Reason      string         `json:"reason"`
		IP          string         `json:"ip,omitempty"`
		UserAgent   string         `json:"user_agent,omitempty"`
		At          time.Time      `json:"at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID: event.PrincipalID,
		Identifier:  event.Identifier,
		Succeeded:   event.Succeeded,
		Reason:      event.Reason,
		IP:          event.IP,
		UserAgent:   event.UserAgent,
		At:          event.At.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.login.attempt", event.PrincipalID, event.At, payload)
}

// PublishTokenRevoked publishes auth.token.revoked events.
func (p *EventPublisher) PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error {
	payload := struct {
		TokenID     string    `json:"token_id"`
		PrincipalID string    `json:"principal_id"`
		Kind        string    `json:"kind"`
		Reason      string    `json:"reason"`
		RevokedAt   time.Time `json:"revoked_at"`
		ExpiresAt   time.Time `json:"expires_at"`
	}{
		TokenID:     event.TokenID,
		PrincipalID: event.PrincipalID,
		Kind:        string(event.Kind),
		Reason:      event.Reason,
		RevokedAt:   event.RevokedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.token.revoked", event.PrincipalID, event.RevokedAt, payload)
}

// PublishEpochBumped publishes auth.epoch.bumped events.
func (p *EventPublisher) PublishEpochBumped(ctx context.Context, event domain.EpochBumpedEvent) error {
	payload := struct {
		PrincipalID string    `json:"principal_id"`
		Epoch       uint64    `json:"epoch"`
		Reason      string    `json:"reason"`
		BumpedAt    time.Time `json:"bumped_at"`
	}{
		PrincipalID: event.PrincipalID,
		Epoch:       event.Epoch,
		Reason:      event.Reason,
		BumpedAt:    event.BumpedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.epoch.bumped", event.PrincipalID, event.BumpedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
