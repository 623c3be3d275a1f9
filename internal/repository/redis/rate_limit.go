package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/authcore/internal/core/port"
)

const defaultRateLimitPrefix = "authcore:rate-limit"

// slidingWindowScript prunes, counts, and conditionally inserts in one server
// round trip. Running it as a single script is what makes the admission check
// atomic: a check-then-act split across two round trips would let concurrent
// callers exceed the limit inside the window.
//
// KEYS[1] window key; ARGV: now_ms, window_ms, limit, member.
// Returns {allowed, remaining, retry_after_ms}.
var slidingWindowScript = red.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)

local count = redis.call("ZCARD", key)
if count >= limit then
	local retry = window
	local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
	if oldest[2] then
		retry = tonumber(oldest[2]) + window - now
		if retry < 0 then
			retry = 0
		end
	end
	return {0, 0, retry}
end

redis.call("ZADD", key, now, member)
redis.call("PEXPIRE", key, window)
return {1, limit - count - 1, 0}
`)

// RateLimitRepository implements sliding-window admission on Redis sorted
// sets, with scores holding millisecond timestamps.
type RateLimitRepository struct {
	client *red.Client
	prefix string
}

// NewRateLimitRepository constructs a repository using the provided client.
func NewRateLimitRepository(client *red.Client, keyPrefix string) *RateLimitRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRateLimitPrefix
	}

	return &RateLimitRepository{client: client, prefix: prefix}
}

// TryAcquire admits or rejects one event against the (identity, scope) key.
func (r *RateLimitRepository) TryAcquire(ctx context.Context, key string, limit int, window time.Duration, at time.Time) (port.AdmissionResult, error) {
	if strings.TrimSpace(key) == "" {
		return port.AdmissionResult{}, errors.New("key must not be empty")
	}
	if limit <= 0 {
		return port.AdmissionResult{}, errors.New("limit must be positive")
	}
	if window <= 0 {
		return port.AdmissionResult{}, errors.New("window must be positive")
	}

	member := strconv.FormatInt(at.UnixNano(), 10) + "-" + uuid.NewString()

	values, err := slidingWindowScript.Run(ctx, r.client,
		[]string{r.key(key)},
		at.UnixMilli(),
		window.Milliseconds(),
		limit,
		member,
	).Int64Slice()
	if err != nil {
		return port.AdmissionResult{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(values) != 3 {
		return port.AdmissionResult{}, fmt.Errorf("redis sliding window: unexpected reply length %d", len(values))
	}

	result := port.AdmissionResult{
		Allowed:    values[0] == 1,
		Remaining:  int(values[1]),
		RetryAfter: time.Duration(values[2]) * time.Millisecond,
	}

	return result, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	return fmt.Sprintf("%s:%s", r.prefix, identifier)
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
