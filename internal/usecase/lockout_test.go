package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/arklim/authcore/internal/core/domain"
)

func TestLockoutGuard_LocksAtThreshold(t *testing.T) {
	clock := newTestClock()
	repo := newStubPrincipalRepo(clock)
	repo.add(domain.Principal{ID: "p1", Identifier: "alice"})

	journal := &stubFailureJournal{principals: repo, audit: &stubAuditRepo{}}

	guard, err := NewLockoutGuard(repo, journal, 3, 30*time.Minute)
	if err != nil {
		t.Fatalf("NewLockoutGuard: %v", err)
	}
	guard.WithClock(clock.Now)

	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		outcome, err := guard.RecordFailure(ctx, "p1", domain.LoginAttempt{Identifier: "alice", Reason: "wrong_password"})
		if err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
		if outcome.Locked {
			t.Fatalf("expected no lock at attempt %d", i)
		}
		if remaining := guard.RemainingAttempts(outcome); remaining != uint(3-i) {
			t.Fatalf("expected %d remaining after attempt %d, got %d", 3-i, i, remaining)
		}
	}

	outcome, err := guard.RecordFailure(ctx, "p1", domain.LoginAttempt{Identifier: "alice", Reason: "wrong_password"})
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if !outcome.Locked {
		t.Fatalf("expected lock at the third failure")
	}
	if guard.RemainingAttempts(outcome) != 0 {
		t.Fatalf("expected zero remaining attempts when locked")
	}
}

func TestLockoutGuard_CheckReportsRemaining(t *testing.T) {
	clock := newTestClock()
	repo := newStubPrincipalRepo(clock)

	lockedUntil := clock.Now().Add(10 * time.Minute)
	repo.add(domain.Principal{ID: "p1", Identifier: "alice", FailedAttempts: 5, LockedUntil: &lockedUntil})

	guard, _ := NewLockoutGuard(repo, &stubFailureJournal{principals: repo, audit: &stubAuditRepo{}}, 5, 30*time.Minute)
	guard.WithClock(clock.Now)

	principal, _ := repo.GetByID(context.Background(), "p1")
	locked, retryAfter, err := guard.Check(context.Background(), principal)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if !locked {
		t.Fatalf("expected locked state")
	}
	if retryAfter != 10*time.Minute {
		t.Fatalf("expected 10m remaining, got %v", retryAfter)
	}
}

func TestLockoutGuard_AutoUnlockAfterExpiry(t *testing.T) {
	clock := newTestClock()
	repo := newStubPrincipalRepo(clock)

	lockedUntil := clock.Now().Add(10 * time.Minute)
	repo.add(domain.Principal{ID: "p1", Identifier: "alice", FailedAttempts: 5, LockedUntil: &lockedUntil})

	guard, _ := NewLockoutGuard(repo, &stubFailureJournal{principals: repo, audit: &stubAuditRepo{}}, 5, 30*time.Minute)
	guard.WithClock(clock.Now)

	clock.Advance(11 * time.Minute)

	principal, _ := repo.GetByID(context.Background(), "p1")
	locked, _, err := guard.Check(context.Background(), principal)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if locked {
		t.Fatalf("expected auto-unlock after lock expiry")
	}
	if principal.FailedAttempts != 0 || principal.LockedUntil != nil {
		t.Fatalf("expected the expired lock to clear the counter")
	}

	stored, _ := repo.GetByID(context.Background(), "p1")
	if stored.FailedAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("expected the clear to reach storage")
	}
}

func TestLockoutGuard_ResetClearsCounter(t *testing.T) {
	clock := newTestClock()
	repo := newStubPrincipalRepo(clock)
	repo.add(domain.Principal{ID: "p1", Identifier: "alice", FailedAttempts: 4})

	guard, _ := NewLockoutGuard(repo, &stubFailureJournal{principals: repo, audit: &stubAuditRepo{}}, 5, 30*time.Minute)
	guard.WithClock(clock.Now)

	if err := guard.Reset(context.Background(), "p1"); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), "p1")
	if stored.FailedAttempts != 0 {
		t.Fatalf("expected counter reset, got %d", stored.FailedAttempts)
	}
}

func TestLockoutGuard_InvalidConfig(t *testing.T) {
	clock := newTestClock()
	repo := newStubPrincipalRepo(clock)

	journal := &stubFailureJournal{principals: repo, audit: &stubAuditRepo{}}

	if _, err := NewLockoutGuard(repo, journal, 0, time.Minute); err == nil {
		t.Fatalf("expected error for zero threshold")
	}
	if _, err := NewLockoutGuard(repo, journal, 5, 0); err == nil {
		t.Fatalf("expected error for zero lock duration")
	}
	if _, err := NewLockoutGuard(nil, journal, 5, time.Minute); err == nil {
		t.Fatalf("expected error for nil repository")
	}
	if _, err := NewLockoutGuard(repo, nil, 5, time.Minute); err == nil {
		t.Fatalf("expected error for nil journal")
	}
}
