package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
	appLogger "github.com/arklim/authcore/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, principalID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("principal_id", principalID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLoginAttempt logs auth.login.attempt events.
func (p *StubPublisher) PublishLoginAttempt(_ context.Context, event domain.LoginAttemptEvent) error {
	// Identifiers and IPs are masked before they reach log output.
	payload := map[string]any{
		"principal_id": event.PrincipalID,
		"identifier":   appLogger.MaskIdentifier(event.Identifier),
		"succeeded":    event.Succeeded,
		"reason":       event.Reason,
		"ip":           appLogger.MaskIP(event.IP),
		"user_agent":   event.UserAgent,
		"at":           event.At,
		"metadata":     event.Metadata,
	}
	p.logEvent("auth.login.attempt", event.PrincipalID, event.At, payload)
	return nil
}

// PublishTokenRevoked logs auth.token.revoked events.
func (p *StubPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	payload := map[string]any{
		"token_id":     event.TokenID,
		"principal_id": event.PrincipalID,
		"kind":         event.Kind,
		"reason":       event.Reason,
		"revoked_at":   event.RevokedAt,
		"expires_at":   event.ExpiresAt,
	}
	p.logEvent("auth.token.revoked", event.PrincipalID, event.RevokedAt, payload)
	return nil
}

// PublishEpochBumped logs auth.epoch.bumped events.
func (p *StubPublisher) PublishEpochBumped(_ context.Context, event domain.EpochBumpedEvent) error {
	payload := map[string]any{
		"principal_id": event.PrincipalID,
		"epoch":        event.Epoch,
		"reason":       event.Reason,
		"bumped_at":    event.BumpedAt,
	}
	p.logEvent("auth.epoch.bumped", event.PrincipalID, event.BumpedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
