package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
)

// LockoutGuard tracks failed-attempt counters on the principal row. All
// counter mutations happen as single atomic statements in the repository, so
// concurrent failed-login storms cannot race past the threshold.
type LockoutGuard struct {
	principals port.PrincipalRepository
	journal    port.FailureJournal
	threshold  uint
	lockFor    time.Duration
	now        func() time.Time
}

// NewLockoutGuard constructs a guard with the supplied threshold and lock
// duration. The journal applies failure charges together with their audit
// entries.
func NewLockoutGuard(principals port.PrincipalRepository, journal port.FailureJournal, threshold uint, lockFor time.Duration) (*LockoutGuard, error) {
	if principals == nil {
		return nil, fmt.Errorf("principal repository is required")
	}
	if journal == nil {
		return nil, fmt.Errorf("failure journal is required")
	}
	if threshold == 0 {
		return nil, fmt.Errorf("lockout threshold must be positive")
	}
	if lockFor <= 0 {
		return nil, fmt.Errorf("lock duration must be positive")
	}
	return &LockoutGuard{
		principals: principals,
		journal:    journal,
		threshold:  threshold,
		lockFor:    lockFor,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (g *LockoutGuard) WithClock(clock func() time.Time) *LockoutGuard {
	if clock != nil {
		g.now = clock
	}
	return g
}

// Threshold returns the configured failure ceiling.
func (g *LockoutGuard) Threshold() uint {
	return g.threshold
}

// Check reports whether the principal is locked out right now. An expired
// lock is cleared in storage before the caller proceeds to the credential
// check, which resets the counter to zero.
func (g *LockoutGuard) Check(ctx context.Context, principal *domain.Principal) (bool, time.Duration, error) {
	if principal == nil {
		return false, 0, fmt.Errorf("principal is required")
	}

	now := g.now()
	if principal.IsLocked(now) {
		return true, principal.LockRemaining(now), nil
	}

	if principal.LockedUntil != nil {
		if err := g.principals.ClearExpiredLock(ctx, principal.ID, now); err != nil {
			return false, 0, fmt.Errorf("clear expired lock: %w", err)
		}
		principal.FailedAttempts = 0
		principal.LockedUntil = nil
	}

	return false, 0, nil
}

// RecordFailure charges one failed attempt together with its audit entry.
// The journal applies the counter increment and the attempt row as one unit,
// so the counter never advances without the matching audit record. The
// outcome says whether this failure transitioned the principal into the
// locked state.
func (g *LockoutGuard) RecordFailure(ctx context.Context, principalID string, attempt domain.LoginAttempt) (port.FailureOutcome, error) {
	if principalID == "" {
		return port.FailureOutcome{}, fmt.Errorf("principal id is required")
	}

	outcome, err := g.journal.RecordFailureAttempt(ctx, principalID, g.threshold, g.lockFor, attempt)
	if err != nil {
		return port.FailureOutcome{}, fmt.Errorf("record login failure: %w", err)
	}

	return outcome, nil
}

// RemainingAttempts converts a failure outcome into the hint surfaced with
// InvalidCredentials responses.
func (g *LockoutGuard) RemainingAttempts(outcome port.FailureOutcome) uint {
	if outcome.FailedAttempts >= g.threshold {
		return 0
	}
	return g.threshold - outcome.FailedAttempts
}

// Reset clears the counter after a verified success.
func (g *LockoutGuard) Reset(ctx context.Context, principalID string) error {
	if principalID == "" {
		return fmt.Errorf("principal id is required")
	}

	if err := g.principals.ResetFailures(ctx, principalID); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}

	return nil
}
