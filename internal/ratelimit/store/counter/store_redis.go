package counter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"bookedge/internal/ratelimit/models"
)

// keyPrefix namespaces gateway counters in a shared Redis.
const keyPrefix = "bookedge:rl:"

// RedisCounterStore implements CounterStore on Redis fixed windows
// (INCR + PEXPIRE). It backs the correctness-critical daily phone quotas,
// which must survive instance restarts and be shared across the fleet.
// Boundary smoothing matters little at 24h windows, so the simpler fixed
// window is acceptable here; the in-memory store keeps the sliding behavior
// for the short per-IP windows.
type RedisCounterStore struct {
	client redis.Cmdable
}

// NewRedisCounterStore creates a Redis-backed counter store.
func NewRedisCounterStore(client redis.Cmdable) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// Hit atomically increments the window counter, setting its expiry on first
// hit. The increment and admission decision are one round trip so concurrent
// hits cannot both observe room under the limit.
func (s *RedisCounterStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	redisKey := keyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	pttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis counter hit: %w", err)
	}

	count := int(incr.Val())
	ttl := pttl.Val()
	if ttl < 0 {
		ttl = window
	}
	resetAt := time.Now().Add(ttl)

	if count > limit {
		retryAfter := int(math.Ceil(ttl.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter,
		}, nil
	}

	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counter for a key.
func (s *RedisCounterStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis counter reset: %w", err)
	}
	return nil
}
