package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestRevocationRepository_RevokeAndCheck(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRevocationRepository(client, "revoked")

	ctx := context.Background()
	now := time.Now().UTC()
	repo.WithClock(func() time.Time { return now })

	if err := repo.Revoke(ctx, "tok-123", "user_logout", now.Add(2*time.Minute)); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	revoked, err := repo.IsRevoked(ctx, "tok-123")
	if err != nil {
		t.Fatalf("IsRevoked returned error: %v", err)
	}
	if !revoked {
		t.Fatalf("expected token to be marked revoked")
	}

	remaining := server.TTL("revoked:tok-123")
	if remaining <= 0 || remaining > 2*time.Minute {
		t.Fatalf("expected ttl within (0, 2m], got %v", remaining)
	}
}

func TestRevocationRepository_TTLExpiry(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRevocationRepository(client, "revoked")

	ctx := context.Background()
	now := time.Now().UTC()
	repo.WithClock(func() time.Time { return now })

	if err := repo.Revoke(ctx, "tok-456", "rotation", now.Add(time.Minute)); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	server.FastForward(2 * time.Minute)

	revoked, err := repo.IsRevoked(ctx, "tok-456")
	if err != nil {
		t.Fatalf("IsRevoked returned error: %v", err)
	}
	if revoked {
		t.Fatalf("expected entry to expire with the shadowed token")
	}
}

func TestRevocationRepository_ExpiredTokenNoop(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRevocationRepository(client, "revoked")

	ctx := context.Background()
	now := time.Now().UTC()
	repo.WithClock(func() time.Time { return now })

	if err := repo.Revoke(ctx, "tok-789", "user_logout", now.Add(-time.Second)); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	revoked, err := repo.IsRevoked(ctx, "tok-789")
	if err != nil {
		t.Fatalf("IsRevoked returned error: %v", err)
	}
	if revoked {
		t.Fatalf("expected already-expired token to be a revocation no-op")
	}
}

func TestRevocationRepository_Miss(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRevocationRepository(client, "revoked")

	revoked, err := repo.IsRevoked(context.Background(), "missing")
	if err != nil {
		t.Fatalf("IsRevoked returned error: %v", err)
	}
	if revoked {
		t.Fatalf("expected revoked to be false")
	}
}

func TestRevocationRepository_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRevocationRepository(client, "revoked")

	if err := repo.Revoke(context.Background(), "", "reason", time.Now().Add(time.Minute)); err == nil {
		t.Fatalf("expected error for empty token id")
	}
	if _, err := repo.IsRevoked(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty token id in IsRevoked")
	}
}
