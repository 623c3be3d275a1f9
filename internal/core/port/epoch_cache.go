package port

import (
	"context"
	"time"
)

// EpochCache keeps a short-lived copy of each principal's token epoch so the
// per-request epoch comparison does not need a database round trip.
type EpochCache interface {
	GetEpoch(ctx context.Context, principalID string) (uint64, error)
	SetEpoch(ctx context.Context, principalID string, epoch uint64, ttl time.Duration) error
	DeleteEpoch(ctx context.Context, principalID string) error
}
