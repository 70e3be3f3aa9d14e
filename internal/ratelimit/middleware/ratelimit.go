package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"bookedge/internal/ratelimit/models"
	"bookedge/internal/ratelimit/service"
	domain "bookedge/pkg/domain"
	dErrors "bookedge/pkg/domainerrors"
	"bookedge/pkg/platform/httputil"
	"bookedge/pkg/requestcontext"
)

// Policy is the interface the middleware needs from the rate limit service.
type Policy interface {
	Evaluate(ctx context.Context, class models.RouteClass, subjects service.Subjects) (*models.RateLimitResult, error)
}

// Middleware applies route-class rate limits to inbound requests.
type Middleware struct {
	policy   Policy
	logger   *slog.Logger
	disabled bool
}

// Option configures the middleware.
type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// New creates the rate limit middleware.
func New(policy Policy, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{policy: policy, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit enforces the IP-scoped rules of a route class.
func (m *Middleware) RateLimit(class models.RouteClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			subjects := service.Subjects{IP: requestcontext.ClientIP(ctx)}

			result, err := m.policy.Evaluate(ctx, class, subjects)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit evaluation failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitWithPhone enforces both the phone and IP rules of a route class.
// The phone number is read from the JSON body ({"phoneNumber": ...}) and
// validated before any quota is consumed; malformed numbers are rejected
// outright so they cannot pollute the counters. The body is restored for the
// downstream handler.
func (m *Middleware) RateLimitWithPhone(class models.RouteClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			phone, err := phoneFromBody(r)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			subjects := service.Subjects{
				IP:    requestcontext.ClientIP(ctx),
				Phone: phone,
			}

			result, evalErr := m.policy.Evaluate(ctx, class, subjects)
			if evalErr != nil {
				m.logger.ErrorContext(ctx, "rate limit evaluation failed", "error", evalErr)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// phoneFromBody extracts and validates the phone number, restoring r.Body.
func phoneFromBody(r *http.Request) (domain.PhoneNumber, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return "", dErrors.New(dErrors.CodeBadRequest, "phone number is required")
	}

	bodyBytes, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable request body")
	}

	var payload struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}

	return domain.ParsePhoneNumber(payload.PhoneNumber)
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil || result.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))

	message := "Too many requests. Please try again later."
	if result.Scope == models.ScopePhone {
		message = "Daily limit for this phone number exceeded. Please try again tomorrow."
	}
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RejectionResponse{
		Success: false,
		Error: models.ErrorBody{
			Code:    models.ReasonFor(result.Scope),
			Message: message,
		},
	})
}
