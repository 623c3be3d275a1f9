package port

import (
	"context"
	"time"

	"github.com/arklim/authcore/internal/core/domain"
)

// FailureOutcome reports the state of the lockout counter after an atomic
// failure increment.
type FailureOutcome struct {
	FailedAttempts uint
	LockedUntil    *time.Time
	Locked         bool
}

// PrincipalRepository reads credential material and mutates the lockout
// counters and token epoch. All counter updates must be single atomic
// statements; concurrent failed attempts must not race past the threshold.
type PrincipalRepository interface {
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Principal, error)
	GetByID(ctx context.Context, id string) (*domain.Principal, error)

	// RecordFailure increments failed_attempts and, when the incremented
	// value reaches threshold, sets locked_until in the same statement.
	RecordFailure(ctx context.Context, id string, threshold uint, lockFor time.Duration) (FailureOutcome, error)
	// ResetFailures zeroes the counter and clears any lock.
	ResetFailures(ctx context.Context, id string) error
	// ClearExpiredLock resets the counter only when locked_until has elapsed.
	ClearExpiredLock(ctx context.Context, id string, now time.Time) error

	// BumpTokenEpoch atomically increments the epoch and returns the new value.
	BumpTokenEpoch(ctx context.Context, id string) (uint64, error)
	// GetTokenEpoch reads the current epoch.
	GetTokenEpoch(ctx context.Context, id string) (uint64, error)

	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
