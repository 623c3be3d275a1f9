package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/authcore/internal/core/domain"
)

func TestAdmissionLimiter_EnforcesScopeLimit(t *testing.T) {
	clock := newTestClock()
	store := newStubRateLimitStore()

	limiter, err := NewAdmissionLimiter(store, domain.NewDegradationPolicy(domain.DegradationPolicyModeFailOpen))
	if err != nil {
		t.Fatalf("NewAdmissionLimiter: %v", err)
	}
	limiter.WithClock(clock.Now)

	if err := limiter.SetScopeLimit(ScopeLogin, ScopeLimit{Max: 3, Window: time.Minute}); err != nil {
		t.Fatalf("SetScopeLimit: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := limiter.Admit(ctx, "alice", ScopeLogin); err != nil {
			t.Fatalf("expected admission %d, got %v", i, err)
		}
	}

	err = limiter.Admit(ctx, "alice", ScopeLogin)
	var rateErr *RateLimitExceededError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitExceededError, got %v", err)
	}
	if rateErr.Scope != ScopeLogin {
		t.Fatalf("expected scope %s, got %s", ScopeLogin, rateErr.Scope)
	}
	if rateErr.RetryAfter <= 0 || rateErr.RetryAfter > time.Minute {
		t.Fatalf("expected retry-after within (0, 60s], got %v", rateErr.RetryAfter)
	}
}

func TestAdmissionLimiter_ScopesAreIndependent(t *testing.T) {
	clock := newTestClock()
	store := newStubRateLimitStore()

	limiter, _ := NewAdmissionLimiter(store, domain.NewDegradationPolicy(domain.DegradationPolicyModeFailOpen))
	limiter.WithClock(clock.Now)

	_ = limiter.SetScopeLimit(ScopeLogin, ScopeLimit{Max: 1, Window: time.Minute})
	_ = limiter.SetScopeLimit(ScopeSecondFactor, ScopeLimit{Max: 1, Window: time.Minute})

	ctx := context.Background()
	if err := limiter.Admit(ctx, "alice", ScopeLogin); err != nil {
		t.Fatalf("login admission: %v", err)
	}
	if err := limiter.Admit(ctx, "alice", ScopeSecondFactor); err != nil {
		t.Fatalf("expected the 2fa budget not to be consumed by login, got %v", err)
	}
}

func TestAdmissionLimiter_UnregisteredScopeUnmetered(t *testing.T) {
	store := newStubRateLimitStore()
	limiter, _ := NewAdmissionLimiter(store, domain.NewDegradationPolicy(domain.DegradationPolicyModeFailOpen))

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if err := limiter.Admit(ctx, "alice", "unknown"); err != nil {
			t.Fatalf("expected unmetered admission, got %v", err)
		}
	}
}

func TestAdmissionLimiter_FailOpenOnStoreOutage(t *testing.T) {
	store := newStubRateLimitStore()
	store.failErr = errors.New("connection refused")

	limiter, _ := NewAdmissionLimiter(store, domain.NewDegradationPolicy(domain.DegradationPolicyModeFailOpen))
	_ = limiter.SetScopeLimit(ScopeLogin, ScopeLimit{Max: 1, Window: time.Minute})

	if err := limiter.Admit(context.Background(), "alice", ScopeLogin); err != nil {
		t.Fatalf("expected fail-open admission during outage, got %v", err)
	}
}

func TestAdmissionLimiter_FailClosedOnStoreOutage(t *testing.T) {
	store := newStubRateLimitStore()
	store.failErr = errors.New("connection refused")

	limiter, _ := NewAdmissionLimiter(store, domain.NewDegradationPolicy(domain.DegradationPolicyModeFailClosed))
	_ = limiter.SetScopeLimit(ScopeLogin, ScopeLimit{Max: 1, Window: time.Minute})

	err := limiter.Admit(context.Background(), "alice", ScopeLogin)
	var rateErr *RateLimitExceededError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected fail-closed rejection during outage, got %v", err)
	}
}

func TestAdmissionLimiter_WindowSlides(t *testing.T) {
	clock := newTestClock()
	store := newStubRateLimitStore()

	limiter, _ := NewAdmissionLimiter(store, domain.NewDegradationPolicy(domain.DegradationPolicyModeFailOpen))
	limiter.WithClock(clock.Now)
	_ = limiter.SetScopeLimit(ScopeLogin, ScopeLimit{Max: 2, Window: time.Minute})

	ctx := context.Background()
	if err := limiter.Admit(ctx, "alice", ScopeLogin); err != nil {
		t.Fatalf("admission 1: %v", err)
	}
	if err := limiter.Admit(ctx, "alice", ScopeLogin); err != nil {
		t.Fatalf("admission 2: %v", err)
	}
	if err := limiter.Admit(ctx, "alice", ScopeLogin); err == nil {
		t.Fatalf("expected rejection with a full window")
	}

	clock.Advance(61 * time.Second)

	if err := limiter.Admit(ctx, "alice", ScopeLogin); err != nil {
		t.Fatalf("expected admission after the window elapsed, got %v", err)
	}
}
