package port

import (
	"context"

	"github.com/arklim/authcore/internal/core/domain"
)

// EventPublisher fans audit events out to external consumers. Publishing is
// best-effort: failures are logged, never surfaced to the request path.
type EventPublisher interface {
	PublishLoginAttempt(ctx context.Context, event domain.LoginAttemptEvent) error
	PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error
	PublishEpochBumped(ctx context.Context, event domain.EpochBumpedEvent) error
}
