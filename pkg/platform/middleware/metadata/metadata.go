// Package metadata extracts client network metadata (IP, User-Agent) early in
// the middleware chain and exposes it through the request context.
package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"bookedge/pkg/requestcontext"
)

// DefaultTrustedIPHeaders is the header chain consulted for the client IP, in
// trust order. Platform-set headers come first; x-forwarded-for is last
// because the client can spoof it. The resolved IP is a best-effort abuse
// signal, not a security boundary on its own.
var DefaultTrustedIPHeaders = []string{
	"X-Vercel-Forwarded-For",
	"CF-Connecting-IP",
	"X-Real-IP",
	"X-Forwarded-For",
}

// ClientMetadata returns middleware that resolves the client IP through the
// given trusted header chain and captures the User-Agent. An empty chain uses
// DefaultTrustedIPHeaders.
func ClientMetadata(trustedHeaders []string) func(http.Handler) http.Handler {
	if len(trustedHeaders) == 0 {
		trustedHeaders = DefaultTrustedIPHeaders
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIPFromRequest(r, trustedHeaders)
			ua := r.Header.Get("User-Agent")

			ctx := r.Context()
			ctx = requestcontext.WithClientIP(ctx, ip)
			ctx = requestcontext.WithUserAgent(ctx, ua)
			ctx = requestcontext.WithDeviceLabel(ctx, DeviceLabel(ua))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromRequest resolves the client IP using the trusted header chain,
// falling back to RemoteAddr. Multi-valued headers use the first entry, which
// is the hop closest to the original client.
func ClientIPFromRequest(r *http.Request, trustedHeaders []string) string {
	for _, header := range trustedHeaders {
		v := r.Header.Get(header)
		if v == "" {
			continue
		}
		if idx := strings.Index(v, ","); idx != -1 {
			v = v[:idx]
		}
		if ip := strings.TrimSpace(v); ip != "" {
			return ip
		}
	}

	// RemoteAddr is "ip:port"; IPv6 is "[::1]:port".
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return "unknown"
}

// DeviceLabel produces a short human-readable description of the caller's
// browser and OS for security logs, e.g. "Chrome on Mac OS X".
func DeviceLabel(rawUserAgent string) string {
	if rawUserAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUserAgent)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name

	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "Unknown Device"
	}
}
