package port

import (
	"context"
	"time"
)

// AdmissionResult describes the outcome of a sliding-window admission check.
type AdmissionResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitStore admits or rejects events against a sliding window keyed by
// (identity, scope). Pruning, counting, and insertion execute as one atomic
// operation on the backing store; a check-then-act split would let concurrent
// callers exceed the ceiling.
type RateLimitStore interface {
	TryAcquire(ctx context.Context, key string, limit int, window time.Duration, at time.Time) (AdmissionResult, error)
}
