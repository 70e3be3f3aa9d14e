// Package middleware gates inbound traffic on the platform access state.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"bookedge/internal/accessgate/models"
	"bookedge/internal/jwttoken"
	dErrors "bookedge/pkg/domainerrors"
	"bookedge/pkg/platform/httputil"
	"bookedge/pkg/requestcontext"
)

// AccessStater is the interface the middleware needs from the access gate
// service.
type AccessStater interface {
	AccessState(ctx context.Context) *models.AccessState
}

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*jwttoken.Claims, error)
}

// Middleware blocks non-privileged traffic while maintenance mode is on.
type Middleware struct {
	gate    AccessStater
	tokens  TokenValidator
	logger  *slog.Logger
	exempt  map[string]struct{}
	blocked func()
}

// Option configures the middleware.
type Option func(*Middleware)

// WithExemptPaths marks request paths that are never gated (health checks,
// the settings route itself, metrics).
func WithExemptPaths(paths ...string) Option {
	return func(m *Middleware) {
		for _, p := range paths {
			m.exempt[p] = struct{}{}
		}
	}
}

// WithTokenValidator enables the admin bypass: a valid bearer token with the
// admin role passes the gate during maintenance.
func WithTokenValidator(tokens TokenValidator) Option {
	return func(m *Middleware) {
		m.tokens = tokens
	}
}

// WithBlockedHook registers a callback invoked on every blocked request,
// used to increment the blocked-requests metric.
func WithBlockedHook(hook func()) Option {
	return func(m *Middleware) {
		m.blocked = hook
	}
}

// New creates the maintenance gate middleware.
func New(gate AccessStater, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		gate:   gate,
		logger: logger,
		exempt: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Maintenance denies requests while maintenance mode is enabled, except for
// exempt paths and authenticated admins. Admin identity, when present, is
// attached to the request context either way.
func (m *Middleware) Maintenance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if admin, subject := m.adminFromRequest(r); admin {
			ctx = requestcontext.WithAdmin(ctx, true)
			ctx = requestcontext.WithSubjectID(ctx, subject)
			r = r.WithContext(ctx)
		}

		if _, ok := m.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		state := m.gate.AccessState(ctx)
		if !state.MaintenanceMode || requestcontext.IsAdmin(ctx) {
			next.ServeHTTP(w, r)
			return
		}

		if m.blocked != nil {
			m.blocked()
		}
		m.logger.InfoContext(ctx, "request blocked by maintenance mode",
			"path", r.URL.Path,
			"method", r.Method,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeMaintenance,
			"Service is under maintenance. Please try again later."))
	})
}

// adminFromRequest validates an optional bearer token and reports whether it
// carries the admin role. Invalid tokens are treated as anonymous; the gate
// is not an authentication surface.
func (m *Middleware) adminFromRequest(r *http.Request) (bool, string) {
	if m.tokens == nil {
		return false, ""
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false, ""
	}
	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		return false, ""
	}
	return claims.IsAdmin(), claims.UserID
}
