// Package ports defines the interfaces the rate limiting service depends on.
package ports

import (
	"context"
	"time"

	"bookedge/internal/ratelimit/models"
)

// CounterStore records hits against a subject key and reports whether the
// hit stays within the limit. Implementations must be safe for concurrent
// use and must count the hit and decide admission as one operation.
type CounterStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}
