// Package service implements the rate limit policy: it maps a request to the
// subjects and rules of its route class and evaluates them in declared order,
// short-circuiting on the first violation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bookedge/internal/ratelimit/metrics"
	"bookedge/internal/ratelimit/models"
	"bookedge/internal/ratelimit/ports"
	domain "bookedge/pkg/domain"
	"bookedge/pkg/platform/privacy"
	"bookedge/pkg/requestcontext"
)

// Subjects carries the identifiers a rule set may key on. Phone is empty for
// routes without a phone-scoped rule.
type Subjects struct {
	IP    string
	Phone domain.PhoneNumber
}

// Service evaluates the configured rules against per-request subjects.
//
// Enforcement policy on store failure is fail-open: denying all traffic
// because a counter store is unreachable is worse than briefly
// under-enforcing, and the durable ledger still protects payment
// correctness downstream.
type Service struct {
	memory  ports.CounterStore // per-instance sliding windows (short IP windows)
	durable ports.CounterStore // optional cross-instance store (daily phone quotas)
	rules   map[models.RouteClass][]models.Rule
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the service.
type Option func(*Service)

// WithDurableStore adds a cross-instance counter store used for phone-scoped
// rules. Without it, phone quotas degrade to per-instance enforcement.
func WithDurableStore(store ports.CounterStore) Option {
	return func(s *Service) {
		s.durable = store
	}
}

// WithMetrics attaches denial/failure metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRules replaces the default rule set (tests, per-deployment overrides).
func WithRules(rules []models.Rule) Option {
	return func(s *Service) {
		s.rules = indexRules(rules)
	}
}

// New creates a rate limit policy service over the given per-instance store.
func New(memory ports.CounterStore, logger *slog.Logger, opts ...Option) (*Service, error) {
	if memory == nil {
		return nil, errors.New("memory counter store is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	svc := &Service{
		memory: memory,
		rules:  indexRules(models.DefaultRules()),
		logger: logger,
	}
	for _, opt := range opts {
		opt(svc)
	}

	for _, rules := range svc.rules {
		for _, r := range rules {
			if err := r.Validate(); err != nil {
				return nil, err
			}
		}
	}
	return svc, nil
}

// Evaluate applies every rule of the route class in declared order and
// returns the first violation, or an allowed result. A phone-scoped rule
// with no phone subject is skipped; handlers validate the phone before
// calling so malformed input never consumes quota.
func (s *Service) Evaluate(ctx context.Context, class models.RouteClass, subjects Subjects) (*models.RateLimitResult, error) {
	rules, ok := s.rules[class]
	if !ok {
		// No rules configured for this class: nothing to enforce.
		return &models.RateLimitResult{Allowed: true}, nil
	}

	var tightest *models.RateLimitResult
	for _, rule := range rules {
		result := s.applyRule(ctx, rule, subjects)
		if result == nil {
			continue
		}
		if !result.Allowed {
			result.Scope = rule.Scope
			if s.metrics != nil {
				s.metrics.RecordExceeded(string(rule.Class), string(rule.Scope))
			}
			s.logger.WarnContext(ctx, "rate limit exceeded",
				"class", rule.Class,
				"scope", rule.Scope,
				"ip", privacy.AnonymizeIP(subjects.IP),
				"phone", privacy.MaskPhone(subjects.Phone.String()),
				"device", requestcontext.DeviceLabel(ctx),
				"limit", rule.Limit,
				"window_seconds", int(rule.Window.Seconds()),
			)
			return result, nil
		}
		// Surface the tightest remaining quota for response headers.
		if tightest == nil || result.Remaining < tightest.Remaining {
			tightest = result
		}
	}
	if tightest == nil {
		return &models.RateLimitResult{Allowed: true}, nil
	}
	return tightest, nil
}

// applyRule runs one rule against its subject. Returns nil when the rule's
// subject is absent or its store failed (fail-open).
func (s *Service) applyRule(ctx context.Context, rule models.Rule, subjects Subjects) *models.RateLimitResult {
	var identifier string
	switch rule.Scope {
	case models.ScopeIP:
		identifier = subjects.IP
	case models.ScopePhone:
		identifier = subjects.Phone.String()
	}
	if identifier == "" {
		return nil
	}

	store, storeName := s.storeFor(rule)
	key := models.CounterKey(rule.Scope, identifier, rule.Class)

	result, err := store.Hit(ctx, key, rule.Limit, rule.Window)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordStoreError(storeName)
		}
		s.logger.ErrorContext(ctx, "counter store failed, allowing request",
			"store", storeName,
			"class", rule.Class,
			"scope", rule.Scope,
			"error", err,
		)
		if storeName == "durable" {
			// Degrade to the per-instance counter rather than dropping
			// enforcement entirely.
			if fallback, ferr := s.memory.Hit(ctx, key, rule.Limit, rule.Window); ferr == nil {
				return fallback
			}
		}
		return nil
	}
	return result
}

// storeFor selects the durable store for phone quotas when configured.
func (s *Service) storeFor(rule models.Rule) (ports.CounterStore, string) {
	if rule.Scope == models.ScopePhone && s.durable != nil {
		return s.durable, "durable"
	}
	return s.memory, "memory"
}

// RetryAfter converts a denial into the caller-facing backoff duration.
func RetryAfter(result *models.RateLimitResult) time.Duration {
	if result == nil || result.Allowed {
		return 0
	}
	return time.Duration(result.RetryAfter) * time.Second
}

func indexRules(rules []models.Rule) map[models.RouteClass][]models.Rule {
	indexed := make(map[models.RouteClass][]models.Rule)
	for _, r := range rules {
		indexed[r.Class] = append(indexed[r.Class], r)
	}
	return indexed
}
