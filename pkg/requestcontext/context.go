// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services and the gateway pipeline consume
// them. Keeping this package free of net/http lets the pipeline stay
// transport-agnostic while still seeing the caller's identity and metadata.
//
// Usage in services (read values):
//
//	ip := requestcontext.ClientIP(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithClientIP(ctx, "203.0.113.9")
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	clientIPKey    struct{}
	userAgentKey   struct{}
	deviceLabelKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	adminKey       struct{}
	subjectIDKey   struct{}
)

// WithClientIP stores the resolved client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the resolved client IP, or "" if the metadata middleware
// did not run.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// WithUserAgent stores the raw User-Agent header value.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// UserAgent returns the raw User-Agent header value.
func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey{}).(string)
	return ua
}

// WithDeviceLabel stores a human-readable device description parsed from the
// User-Agent, used in security logs.
func WithDeviceLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, deviceLabelKey{}, label)
}

// DeviceLabel returns the parsed device description.
func DeviceLabel(ctx context.Context) string {
	label, _ := ctx.Value(deviceLabelKey{}).(string)
	return label
}

// WithRequestID stores the request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request correlation id.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithTime injects a request-scoped "now" so every stage of a single request
// observes the same timestamp. Tests use this for deterministic clocks.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the request-scoped time, falling back to the wall clock when
// no middleware set one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithAdmin marks the context as belonging to a verified administrator
// session. Set only after the role claim has been validated.
func WithAdmin(ctx context.Context, admin bool) context.Context {
	return context.WithValue(ctx, adminKey{}, admin)
}

// IsAdmin reports whether the caller carries a verified administrator claim.
func IsAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(adminKey{}).(bool)
	return admin
}

// WithSubjectID stores the authenticated subject (user) id, if any.
func WithSubjectID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, subjectIDKey{}, id)
}

// SubjectID returns the authenticated subject id, or "" for anonymous calls.
func SubjectID(ctx context.Context) string {
	id, _ := ctx.Value(subjectIDKey{}).(string)
	return id
}
