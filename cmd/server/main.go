// Command server runs the edge admission gateway: rate limiting, the
// maintenance gate, machine-caller authentication, and idempotent payment
// webhook processing in front of the booking platform.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accessmw "bookedge/internal/accessgate/middleware"
	accessservice "bookedge/internal/accessgate/service"
	accessstore "bookedge/internal/accessgate/store"
	"bookedge/internal/credential"
	eventstore "bookedge/internal/event/store"
	"bookedge/internal/gateway"
	"bookedge/internal/jwttoken"
	"bookedge/internal/notify"
	"bookedge/internal/platform/config"
	"bookedge/internal/platform/httpserver"
	"bookedge/internal/platform/logger"
	"bookedge/internal/platform/metrics"
	"bookedge/internal/platform/postgres"
	"bookedge/internal/platform/redis"
	ratelimitmetrics "bookedge/internal/ratelimit/metrics"
	ratelimitmw "bookedge/internal/ratelimit/middleware"
	ratelimitservice "bookedge/internal/ratelimit/service"
	"bookedge/internal/ratelimit/store/counter"
	httptransport "bookedge/internal/transport/http"
	"bookedge/internal/verify"
)

const tokenIssuer = "bookedge"

func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := run(cfg, log); err != nil {
		log.Error("gateway exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		// The durable counter store is a backstop, not a dependency: phone
		// quotas degrade to per-instance enforcement without it.
		log.Warn("redis unavailable, phone quotas are per-instance only", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	m := metrics.New()

	policyOpts := []ratelimitservice.Option{
		ratelimitservice.WithMetrics(ratelimitmetrics.New()),
	}
	if rdb != nil {
		policyOpts = append(policyOpts,
			ratelimitservice.WithDurableStore(counter.NewRedisCounterStore(rdb.Client)))
	}
	policy, err := ratelimitservice.New(counter.NewMemoryCounterStore(), log, policyOpts...)
	if err != nil {
		return err
	}

	gate, err := accessservice.New(accessstore.NewPostgres(db), log,
		accessservice.WithTTL(cfg.AccessStateTTL),
		accessservice.WithFetchTimeout(cfg.SettingsFetchTimeout),
		accessservice.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	tokens := jwttoken.NewService(cfg.JWTSigningKey, tokenIssuer)

	dispatcher := notify.NewDispatcher(
		notify.NewHTTPSender(cfg.Providers.AlimtalkURL, cfg.Providers.PushURL, cfg.Providers.NotifyAPIKey),
		log,
	)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	pipeline := gateway.New(
		gate,
		policy,
		credential.NewWebhookSignature(cfg.WebhookSecret),
		eventstore.NewPostgres(db),
		log,
		gateway.WithMetrics(m),
	)

	handlers := httptransport.NewHandlers(
		log,
		pipeline,
		gate,
		verify.NewIdentityClient(cfg.Providers.IdentityURL, cfg.Providers.IdentitySecret),
		verify.NewOTPClient(cfg.Providers.OTPURL, cfg.Providers.OTPSecret),
		dispatcher,
	)

	maintenance := accessmw.New(gate, log,
		accessmw.WithExemptPaths(httptransport.MaintenanceExemptPaths()...),
		accessmw.WithTokenValidator(tokens),
		accessmw.WithBlockedHook(func() {
			m.RequestsBlocked.WithLabelValues("maintenance").Inc()
		}),
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:           log,
		Metrics:          m,
		Handlers:         handlers,
		RateLimit:        ratelimitmw.New(policy, log, ratelimitmw.WithDisabled(cfg.RateLimitDisabled)),
		Maintenance:      maintenance,
		AlimtalkSecret:   credential.NewSharedSecret(cfg.AlimtalkAPIKey),
		FCMSecret:        credential.NewSharedSecret(cfg.FCMAPIKey),
		TrustedIPHeaders: cfg.TrustedIPHeaders,
	})

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("gateway listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
