// Package service caches the traffic-gating settings and answers admission
// questions for inbound requests.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bookedge/internal/accessgate/models"
	"bookedge/internal/accessgate/ports"
	"bookedge/internal/platform/metrics"
)

// DefaultTTL bounds how stale a cached snapshot may be before a refresh.
// Ten seconds keeps the propagation delay of a maintenance flip small
// without putting the settings store on the request path.
const DefaultTTL = 10 * time.Second

// DefaultFetchTimeout caps a single refresh so a slow settings store never
// stalls request admission.
const DefaultFetchTimeout = 2500 * time.Millisecond

// Service serves the access state from a TTL cache. Concurrent refreshes
// collapse into one store fetch; on fetch failure the last-known-good
// snapshot is served, or the fail-open default if none exists yet.
type Service struct {
	store        ports.SettingsStore
	logger       *slog.Logger
	metrics      *metrics.Metrics
	ttl          time.Duration
	fetchTimeout time.Duration
	clock        func() time.Time

	mu     sync.RWMutex
	cached *models.AccessState

	group singleflight.Group
}

// Option configures the service.
type Option func(*Service)

// WithTTL overrides the cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithFetchTimeout overrides the per-refresh timeout.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.fetchTimeout = timeout
		}
	}
}

// WithMetrics attaches fetch-failure metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates an access gate service over the given settings store.
func New(store ports.SettingsStore, logger *slog.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Service{
		store:        store,
		logger:       logger,
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessState returns the current snapshot, refreshing it when the cached
// one is older than the TTL. Never returns an error: admission decisions
// fall back to the last-known-good state, defaulting open.
func (s *Service) AccessState(ctx context.Context) *models.AccessState {
	now := s.clock()

	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()

	if cached != nil && cached.Age(now) <= s.ttl {
		return cached
	}

	// Collapse concurrent refreshes into a single store fetch.
	fresh, err, _ := s.group.Do("access_state", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		state, err := s.store.FetchAccessState(fetchCtx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cached = state
		s.mu.Unlock()
		return state, nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.SettingsFetchFails.Inc()
		}
		s.logger.WarnContext(ctx, "settings fetch failed, serving last known state", "error", err)
		if cached != nil {
			return cached
		}
		return models.DefaultAccessState()
	}
	return fresh.(*models.AccessState)
}

// Invalidate drops the cached snapshot so the next read refetches.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
