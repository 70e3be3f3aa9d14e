package testutil

import (
	"context"
	"time"

	"bookedge/pkg/requestcontext"
)

// Context returns a request-like context with client metadata and a fixed
// time, for service tests that do not run the HTTP middleware chain.
func Context(ip string, now time.Time) context.Context {
	ctx := context.Background()
	ctx = requestcontext.WithClientIP(ctx, ip)
	ctx = requestcontext.WithTime(ctx, now)
	ctx = requestcontext.WithRequestID(ctx, "test-request")
	return ctx
}
