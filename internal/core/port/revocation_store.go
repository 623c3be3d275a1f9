package port

import (
	"context"
	"time"
)

// RevocationStore tracks revoked token identifiers. Entries carry a TTL equal
// to the remaining validity of the token they shadow, so the store never
// grows unbounded and never forgets a live revocation.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID, reason string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
