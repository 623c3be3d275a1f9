package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/authcore/internal/core/port"
	"github.com/arklim/authcore/internal/repository"
)

const defaultEpochPrefix = "authcore:token-epoch"

// EpochCache keeps a short-lived copy of each principal's token epoch so the
// per-request comparison avoids a database round trip. A miss falls through
// to the principal repository.
type EpochCache struct {
	client *red.Client
	prefix string
}

// NewEpochCache constructs the epoch cache helper.
func NewEpochCache(client *red.Client, keyPrefix string) *EpochCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultEpochPrefix
	}

	return &EpochCache{client: client, prefix: prefix}
}

// GetEpoch fetches the cached epoch. Returns repository.ErrNotFound on miss.
func (c *EpochCache) GetEpoch(ctx context.Context, principalID string) (uint64, error) {
	key := c.key(principalID)
	if key == "" {
		return 0, fmt.Errorf("principal id is required")
	}

	result, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("redis get token epoch: %w", err)
	}

	epoch, parseErr := strconv.ParseUint(result, 10, 64)
	if parseErr != nil {
		return 0, fmt.Errorf("parse cached token epoch: %w", parseErr)
	}

	return epoch, nil
}

// SetEpoch stores the epoch with the supplied TTL.
func (c *EpochCache) SetEpoch(ctx context.Context, principalID string, epoch uint64, ttl time.Duration) error {
	key := c.key(principalID)
	if key == "" {
		return fmt.Errorf("principal id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	if err := c.client.Set(ctx, key, strconv.FormatUint(epoch, 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis set token epoch: %w", err)
	}

	return nil
}

// DeleteEpoch removes the cached entry, forcing the next check to refetch.
func (c *EpochCache) DeleteEpoch(ctx context.Context, principalID string) error {
	key := c.key(principalID)
	if key == "" {
		return fmt.Errorf("principal id is required")
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete token epoch: %w", err)
	}

	return nil
}

func (c *EpochCache) key(principalID string) string {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, principalID)
}

var _ port.EpochCache = (*EpochCache)(nil)
