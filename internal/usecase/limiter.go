package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
)

// Admission scopes. Scope is part of the storage key, so budgets for
// different scopes never cross-contaminate.
const (
	ScopeLogin        = "login"
	ScopeSecondFactor = "2fa"
	ScopeAPIKeyPrefix = "apikey:"
)

// ScopeLimit bounds one admission scope to Max events per trailing Window.
type ScopeLimit struct {
	Max    int
	Window time.Duration
}

// AdmissionLimiter enforces sliding-window ceilings per (identity, scope).
// When the store is unreachable the configured degradation policy decides
// the outcome: fail_open admits, fail_closed rejects.
type AdmissionLimiter struct {
	store  port.RateLimitStore
	policy domain.DegradationPolicy
	limits map[string]ScopeLimit
	now    func() time.Time
}

// NewAdmissionLimiter constructs a limiter with no scope limits registered.
func NewAdmissionLimiter(store port.RateLimitStore, policy domain.DegradationPolicy) (*AdmissionLimiter, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limit store is required")
	}
	return &AdmissionLimiter{
		store:  store,
		policy: policy,
		limits: make(map[string]ScopeLimit),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (l *AdmissionLimiter) WithClock(clock func() time.Time) *AdmissionLimiter {
	if clock != nil {
		l.now = clock
	}
	return l
}

// SetScopeLimit registers the ceiling for a scope.
func (l *AdmissionLimiter) SetScopeLimit(scope string, limit ScopeLimit) error {
	if scope == "" {
		return fmt.Errorf("scope is required")
	}
	if limit.Max <= 0 || limit.Window <= 0 {
		return fmt.Errorf("scope limit must have positive max and window")
	}
	l.limits[scope] = limit
	return nil
}

// Admit charges one event against the (identity, scope) window. A
// RateLimitExceededError carries the retry-after hint for the caller. Scopes
// without a registered limit are unmetered.
func (l *AdmissionLimiter) Admit(ctx context.Context, identity, scope string) error {
	limit, ok := l.limits[scope]
	if !ok {
		return nil
	}
	return l.AdmitWithLimit(ctx, identity, scope, limit)
}

// AdmitWithLimit charges one event using an explicit ceiling, for scopes
// whose limits are derived at runtime (per-API-key budgets).
func (l *AdmissionLimiter) AdmitWithLimit(ctx context.Context, identity, scope string, limit ScopeLimit) error {
	if identity == "" {
		return fmt.Errorf("identity is required")
	}
	if scope == "" {
		return fmt.Errorf("scope is required")
	}

	key := scope + ":" + identity
	result, err := l.store.TryAcquire(ctx, key, limit.Max, limit.Window, l.now())
	if err != nil {
		if l.policy.FailsClosed() {
			return &RateLimitExceededError{Scope: scope, RetryAfter: limit.Window}
		}
		return nil
	}

	if !result.Allowed {
		retryAfter := result.RetryAfter
		if retryAfter <= 0 || retryAfter > limit.Window {
			retryAfter = limit.Window
		}
		return &RateLimitExceededError{Scope: scope, RetryAfter: retryAfter}
	}

	return nil
}
