package counter

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"bookedge/internal/ratelimit/models"
)

// evictEvery bounds how often the hit path sweeps for stale windows.
// The sweep runs outside the per-window locks and only takes the map lock.
const evictEvery = 256

// MemoryCounterStore implements CounterStore with a two-bucket sliding
// window per subject key. Enforcement is per process instance; cross-instance
// correctness-critical limits use the Redis store instead.
//
// The two-bucket scheme keeps the current and previous fixed window counts
// and weights the previous count by the unelapsed fraction of the current
// window. This smooths the boundary burst of naive fixed windows without the
// memory cost of a timestamp log.
type MemoryCounterStore struct {
	mu      sync.RWMutex
	windows map[string]*slidingWindow
	hits    atomic.Uint64 // eviction cadence counter
	nowFn   func() time.Time
}

// slidingWindow holds the per-subject counters. Lock ordering: map lock
// before window lock; a window lock is never held while acquiring the map
// lock.
type slidingWindow struct {
	mu          sync.Mutex
	windowStart time.Time
	curr        int
	prev        int
	window      time.Duration
	lastHit     time.Time
	dead        bool // set under mu before the window leaves the map
}

// Option configures the store.
type Option func(*MemoryCounterStore)

// WithNowFunc injects a clock, used by tests for deterministic windows.
func WithNowFunc(nowFn func() time.Time) Option {
	return func(s *MemoryCounterStore) {
		s.nowFn = nowFn
	}
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore(opts ...Option) *MemoryCounterStore {
	s := &MemoryCounterStore{
		windows: make(map[string]*slidingWindow),
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit records one request for key and reports whether it stays within limit.
func (s *MemoryCounterStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.nowFn()

	if s.hits.Add(1)%evictEvery == 0 {
		s.evictStale(now)
	}

	sw := s.lockWindow(key, window, now)
	defer sw.mu.Unlock()

	sw.roll(now)
	sw.lastHit = now

	effective := sw.effectiveCount(now)
	resetAt := sw.windowStart.Add(sw.window)

	if effective+1 > float64(limit) {
		retryAfter := int(math.Ceil(resetAt.Sub(now).Seconds()))
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

	sw.curr++
	remaining := limit - int(math.Ceil(effective)) - 1
	if remaining < 0 {
		remaining = 0
	}
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counters for a key.
func (s *MemoryCounterStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sw := s.windows[key]; sw != nil {
		sw.mu.Lock()
		sw.dead = true
		sw.mu.Unlock()
	}
	delete(s.windows, key)
	return nil
}

// lockWindow returns the live window for key with its lock held. A window
// evicted between the map lookup and the lock would swallow the hit, so a
// dead window is discarded and the lookup retried.
func (s *MemoryCounterStore) lockWindow(key string, window time.Duration, now time.Time) *slidingWindow {
	for {
		sw := s.getOrCreateWindow(key, window, now)
		sw.mu.Lock()
		if !sw.dead {
			return sw
		}
		sw.mu.Unlock()
	}
}

// getOrCreateWindow returns the window for key, allocating a fresh one on the
// first hit.
func (s *MemoryCounterStore) getOrCreateWindow(key string, window time.Duration, now time.Time) *slidingWindow {
	s.mu.RLock()
	sw := s.windows[key]
	s.mu.RUnlock()
	if sw != nil {
		return sw
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sw = s.windows[key]; sw != nil {
		return sw
	}

	sw = &slidingWindow{
		windowStart: now,
		window:      window,
		lastHit:     now,
	}
	s.windows[key] = sw
	return sw
}

// evictStale drops windows idle for more than twice their length. It uses
// TryLock so a concurrent sweep or a busy map never stalls the hit path;
// a skipped sweep just runs on a later cadence tick.
func (s *MemoryCounterStore) evictStale(now time.Time) {
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()
	for key, sw := range s.windows {
		sw.mu.Lock()
		stale := now.Sub(sw.lastHit) > 2*sw.window
		if stale {
			sw.dead = true
		}
		sw.mu.Unlock()
		if stale {
			delete(s.windows, key)
		}
	}
}

// roll advances the fixed windows to contain now. A gap longer than two
// windows discards both buckets; otherwise the current bucket becomes the
// previous one.
func (sw *slidingWindow) roll(now time.Time) {
	elapsed := now.Sub(sw.windowStart)
	switch {
	case elapsed < sw.window:
		// still inside the current window
	case elapsed < 2*sw.window:
		sw.prev = sw.curr
		sw.curr = 0
		sw.windowStart = sw.windowStart.Add(sw.window)
	default:
		sw.prev = 0
		sw.curr = 0
		sw.windowStart = now
	}
}

// effectiveCount weighs the previous bucket by the unelapsed fraction of the
// current window. Caller holds the window lock and has rolled the window.
func (sw *slidingWindow) effectiveCount(now time.Time) float64 {
	fraction := float64(now.Sub(sw.windowStart)) / float64(sw.window)
	if fraction > 1 {
		fraction = 1
	}
	return float64(sw.curr) + float64(sw.prev)*(1-fraction)
}
