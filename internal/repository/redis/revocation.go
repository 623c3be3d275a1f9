package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/authcore/internal/core/port"
)

const defaultRevocationPrefix = "authcore:revoked"

// RevocationRepository manages revoked token identifiers backed by Redis.
// Each entry's TTL equals the remaining lifetime of the token it shadows, so
// the set is self-pruning and never forgets a live revocation.
type RevocationRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewRevocationRepository wires a Redis client into a revocation repository.
func NewRevocationRepository(client *red.Client, keyPrefix string) *RevocationRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}

	return &RevocationRepository{
		client: client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (r *RevocationRepository) WithClock(clock func() time.Time) *RevocationRepository {
	if clock != nil {
		r.now = clock
	}
	return r
}

// Revoke stores the token id with a TTL running until expiresAt. Revoking a
// token that has already expired is a no-op.
func (r *RevocationRepository) Revoke(ctx context.Context, tokenID, reason string, expiresAt time.Time) error {
	key := r.key(tokenID)
	if key == "" {
		return errors.New("token id must not be empty")
	}

	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, key, reason, ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked token: %w", err)
	}

	return nil
}

// IsRevoked reports whether the token id is present in the revocation set.
func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	key := r.key(tokenID)
	if key == "" {
		return false, errors.New("token id must not be empty")
	}

	if err := r.client.Get(ctx, key).Err(); err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get revoked token: %w", err)
	}

	return true, nil
}

func (r *RevocationRepository) key(tokenID string) string {
	trimmed := strings.TrimSpace(tokenID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.RevocationStore = (*RevocationRepository)(nil)
