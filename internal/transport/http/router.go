package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accessmw "bookedge/internal/accessgate/middleware"
	"bookedge/internal/credential"
	"bookedge/internal/platform/metrics"
	platformmw "bookedge/internal/platform/middleware"
	ratelimitmw "bookedge/internal/ratelimit/middleware"
	"bookedge/internal/ratelimit/models"
	"bookedge/pkg/platform/middleware/metadata"
)

// RouterConfig wires the middleware stack and handlers into the router.
type RouterConfig struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Handlers    *Handlers
	RateLimit   *ratelimitmw.Middleware
	Maintenance *accessmw.Middleware

	// Per-route shared secrets for first-party machine callers.
	AlimtalkSecret *credential.SharedSecret
	FCMSecret      *credential.SharedSecret

	// TrustedIPHeaders overrides the proxy header chain; nil uses the
	// default Vercel/Cloudflare order.
	TrustedIPHeaders []string
}

// Exempt paths: reachable during maintenance so clients can probe status
// and the payment provider keeps its own admission path (the webhook
// pipeline gates itself).
var maintenanceExemptPaths = []string{
	"/api/health",
	"/api/settings/status",
	"/api/payment/webhook",
	"/metrics",
}

// MaintenanceExemptPaths returns the routes the maintenance gate skips.
func MaintenanceExemptPaths() []string {
	return maintenanceExemptPaths
}

// NewRouter builds the gateway's HTTP surface.
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers

	r := chi.NewRouter()
	r.Use(platformmw.RequestID)
	r.Use(platformmw.RequestTime)
	r.Use(metadata.ClientMetadata(cfg.TrustedIPHeaders))
	r.Use(platformmw.Recovery(cfg.Logger))
	r.Use(platformmw.Logger(cfg.Logger))
	r.Use(platformmw.Latency(cfg.Metrics))
	r.Use(cfg.Maintenance.Maintenance)

	// Always-on routes: excluded from rate limiting so probes and status
	// checks never consume quota.
	r.Get("/api/health", h.handleHealth)
	r.Get("/api/settings/status", h.handleSettingsStatus)
	r.Handle("/metrics", promhttp.Handler())

	// The webhook runs its own admission pipeline (access, rate limit,
	// signature, ledger); mounting the route-class middleware here would
	// double-count.
	r.Post("/api/payment/webhook", h.handlePaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(cfg.RateLimit.RateLimit(models.ClassGeneral))

		r.Group(func(r chi.Router) {
			r.Use(cfg.RateLimit.RateLimitWithPhone(models.ClassIdentityVerification))
			r.Post("/api/auth/identity/request", h.handleIdentityRequest)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.RateLimit.RateLimitWithPhone(models.ClassOTPSend))
			r.Post("/api/auth/otp/send", h.handleOTPSend)
		})

		r.Group(func(r chi.Router) {
			r.Use(credential.RequireAPIKey(cfg.AlimtalkSecret, cfg.Logger))
			r.Post("/api/notifications/alimtalk", h.handleAlimtalkSend)
			r.Get("/api/notifications/alimtalk", h.handleNotifyProbe)
		})

		r.Group(func(r chi.Router) {
			r.Use(credential.RequireAPIKey(cfg.FCMSecret, cfg.Logger))
			r.Post("/api/fcm/send", h.handlePushSend)
			r.Get("/api/fcm/send", h.handleNotifyProbe)
		})
	})

	return r
}
