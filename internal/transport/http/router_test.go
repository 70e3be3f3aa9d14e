package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	accessmw "bookedge/internal/accessgate/middleware"
	accessservice "bookedge/internal/accessgate/service"
	accessstore "bookedge/internal/accessgate/store"
	"bookedge/internal/credential"
	eventmodels "bookedge/internal/event/models"
	eventstore "bookedge/internal/event/store"
	"bookedge/internal/gateway"
	"bookedge/internal/jwttoken"
	"bookedge/internal/notify"
	"bookedge/internal/platform/metrics"
	ratelimitmw "bookedge/internal/ratelimit/middleware"
	"bookedge/internal/ratelimit/models"
	ratelimitservice "bookedge/internal/ratelimit/service"
	"bookedge/internal/ratelimit/store/counter"
	httptransport "bookedge/internal/transport/http"
	domain "bookedge/pkg/domain"
	"bookedge/pkg/testutil"
)

const (
	webhookSecret  = "whsec_test"
	alimtalkSecret = "alimtalk_test"
	fcmSecret      = "fcm_test"
)

type fakeIdentity struct {
	calls int
	err   error
}

func (f *fakeIdentity) RequestVerification(_ context.Context, _ domain.PhoneNumber) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("iv_%d", f.calls), nil
}

type fakeOTP struct {
	calls int
}

func (f *fakeOTP) SendOTP(context.Context, domain.PhoneNumber) error {
	f.calls++
	return nil
}

type fakeNotifier struct {
	alimtalk []*notify.AlimtalkRequest
	push     []*notify.PushRequest
	intents  []eventmodels.NotificationIntent
}

func (f *fakeNotifier) EnqueueAlimtalk(_ context.Context, req *notify.AlimtalkRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	f.alimtalk = append(f.alimtalk, req)
	return "msg_a", nil
}

func (f *fakeNotifier) EnqueuePush(_ context.Context, req *notify.PushRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	f.push = append(f.push, req)
	return "msg_p", nil
}

func (f *fakeNotifier) EnqueueIntents(_ context.Context, intents []eventmodels.NotificationIntent) error {
	f.intents = append(f.intents, intents...)
	return nil
}

type RouterSuite struct {
	suite.Suite
	router   http.Handler
	settings *accessstore.MemoryStore
	events   *eventstore.MemoryStore
	verifier *credential.WebhookSignature
	identity *fakeIdentity
	otp      *fakeOTP
	notifier *fakeNotifier
	tokens   *jwttoken.Service
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.settings = accessstore.NewMemory()
	gate, err := accessservice.New(s.settings, logger, accessservice.WithTTL(time.Millisecond))
	s.Require().NoError(err)

	policy, err := ratelimitservice.New(counter.NewMemoryCounterStore(), logger)
	s.Require().NoError(err)

	s.events = eventstore.NewMemory()
	s.verifier = credential.NewWebhookSignature(webhookSecret)
	s.identity = &fakeIdentity{}
	s.otp = &fakeOTP{}
	s.notifier = &fakeNotifier{}
	s.tokens = jwttoken.NewService("test-signing-key", "bookedge")

	pipeline := gateway.New(gate, policy, s.verifier, s.events, logger)
	handlers := httptransport.NewHandlers(logger, pipeline, gate, s.identity, s.otp, s.notifier)

	maintenance := accessmw.New(gate, logger,
		accessmw.WithExemptPaths(httptransport.MaintenanceExemptPaths()...),
		accessmw.WithTokenValidator(s.tokens),
	)

	s.router = httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         logger,
		Metrics:        metrics.NewWith(prometheus.NewRegistry()),
		Handlers:       handlers,
		RateLimit:      ratelimitmw.New(policy, logger),
		Maintenance:    maintenance,
		AlimtalkSecret: credential.NewSharedSecret(alimtalkSecret),
		FCMSecret:      credential.NewSharedSecret(fcmSecret),
	})
}

func (s *RouterSuite) do(method, path string, body []byte, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	r.RemoteAddr = "203.0.113.7:52100"
	for _, m := range mutate {
		m(r)
	}
	return testutil.DoRequest(s.router, r)
}

func (s *RouterSuite) doJSON(method, path string, payload any, apiKey string) *httptest.ResponseRecorder {
	r := testutil.NewJSONRequest(s.T(), method, path, payload)
	r.RemoteAddr = "203.0.113.7:52100"
	if apiKey != "" {
		r.Header.Set("x-api-key", apiKey)
	}
	return testutil.DoRequest(s.router, r)
}

func (s *RouterSuite) signedWebhook(event *eventmodels.WebhookEvent) (body []byte, header string) {
	body, err := json.Marshal(event)
	s.Require().NoError(err)
	return body, s.verifier.Sign(body, time.Now())
}

func paidEvent(txID, paymentID string) *eventmodels.WebhookEvent {
	return &eventmodels.WebhookEvent{
		Type: eventmodels.EventTypePaid,
		Data: eventmodels.EventData{PaymentID: paymentID, TransactionID: txID},
	}
}

func (s *RouterSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/api/health", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestSettingsStatus() {
	s.settings.SetMaintenanceMode(true)

	rec := s.do(http.MethodGet, "/api/settings/status", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("public, s-maxage=10, stale-while-revalidate=30", rec.Header().Get("Cache-Control"))

	var body struct {
		MaintenanceMode   bool `json:"maintenanceMode"`
		AllowRegistration bool `json:"allowRegistration"`
	}
	testutil.DecodeJSON(s.T(), rec, &body)
	s.True(body.MaintenanceMode)
	s.True(body.AllowRegistration)
}

func (s *RouterSuite) TestMaintenanceBlocksUserRoutesButNotStatus() {
	s.settings.SetMaintenanceMode(true)

	rec := s.do(http.MethodPost, "/api/auth/otp/send",
		[]byte(`{"phoneNumber":"01012345678"}`))
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Zero(s.otp.calls)

	rec = s.do(http.MethodGet, "/api/settings/status", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestMaintenanceAdminBypass() {
	s.settings.SetMaintenanceMode(true)
	token, err := s.tokens.GenerateToken("admin-1", "admin", time.Hour)
	s.Require().NoError(err)

	rec := s.do(http.MethodPost, "/api/auth/otp/send",
		[]byte(`{"phoneNumber":"01012345678"}`),
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(1, s.otp.calls)
}

func (s *RouterSuite) TestWebhookReplayAppliesOnce() {
	s.events.AddReservation("resv_1", "user_1", "Nail Atelier", 55000, eventmodels.StatusPending, "pay_1")
	body, header := s.signedWebhook(paidEvent("tx_1", "pay_1"))

	for i := 0; i < 5; i++ {
		rec := s.do(http.MethodPost, "/api/payment/webhook", body,
			func(r *http.Request) { r.Header.Set(httptransport.SignatureHeader, header) })
		s.Equal(http.StatusOK, rec.Code, "delivery %d must be acknowledged", i+1)

		var resp struct {
			Success bool `json:"success"`
		}
		testutil.DecodeJSON(s.T(), rec, &resp)
		s.True(resp.Success)
	}

	status, _ := s.events.Status("resv_1")
	s.Equal(eventmodels.StatusPaid, status)
	s.Len(s.notifier.intents, 1, "five deliveries, one notification")
}

func (s *RouterSuite) TestWebhookRejectsUnsignedDelivery() {
	body, _ := json.Marshal(paidEvent("tx_1", "pay_1"))

	rec := s.do(http.MethodPost, "/api/payment/webhook", body)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.False(s.events.Claimed("tx_1"))
}

func (s *RouterSuite) TestWebhookBlockedDuringMaintenance() {
	s.settings.SetMaintenanceMode(true)
	s.events.AddReservation("resv_1", "user_1", "", 0, eventmodels.StatusPending, "pay_1")
	body, header := s.signedWebhook(paidEvent("tx_1", "pay_1"))

	rec := s.do(http.MethodPost, "/api/payment/webhook", body,
		func(r *http.Request) { r.Header.Set(httptransport.SignatureHeader, header) })
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.False(s.events.Claimed("tx_1"), "the provider will retry once maintenance ends")
}

func (s *RouterSuite) TestIdentityRequestValidatesPhoneBeforeQuota() {
	rec := s.do(http.MethodPost, "/api/auth/identity/request",
		[]byte(`{"phoneNumber":"02099990000"}`))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Zero(s.identity.calls)
}

func (s *RouterSuite) TestIdentityDailyQuota() {
	body := []byte(`{"phoneNumber":"010-1234-5678"}`)

	for i := 0; i < 3; i++ {
		rec := s.do(http.MethodPost, "/api/auth/identity/request", body)
		s.Equal(http.StatusOK, rec.Code, "request %d is within the daily quota", i+1)
	}

	rec := s.do(http.MethodPost, "/api/auth/identity/request", body)
	s.Equal(http.StatusTooManyRequests, rec.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.Equal(models.ReasonDailyLimitExceeded, resp.Error.Code)
	s.Equal(3, s.identity.calls)
}

func (s *RouterSuite) TestAlimtalkRequiresAPIKey() {
	payload := &notify.AlimtalkRequest{Type: notify.TypeBookingConfirmation}
	payload.Data.BookingID = "bk_1"
	payload.Data.PhoneNumber = "+821012345678"

	rec := s.doJSON(http.MethodPost, "/api/notifications/alimtalk", payload, "")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Empty(s.notifier.alimtalk)

	rec = s.doJSON(http.MethodPost, "/api/notifications/alimtalk", payload, alimtalkSecret)
	s.Equal(http.StatusOK, rec.Code)
	s.Len(s.notifier.alimtalk, 1)

	// GET probe stays open.
	rec = s.do(http.MethodGet, "/api/notifications/alimtalk", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestPushRequiresItsOwnKey() {
	payload := &notify.PushRequest{UserID: "user_1"}
	payload.Notification.Title = "Hi"
	payload.Notification.Body = "There"

	rec := s.doJSON(http.MethodPost, "/api/fcm/send", payload, alimtalkSecret)
	s.Equal(http.StatusUnauthorized, rec.Code, "keys are per-route, not shared")

	rec = s.doJSON(http.MethodPost, "/api/fcm/send", payload, fcmSecret)
	s.Equal(http.StatusOK, rec.Code)
	s.Len(s.notifier.push, 1)
}

func (s *RouterSuite) TestRateLimitHeadersOnUserRoutes() {
	rec := s.do(http.MethodPost, "/api/auth/otp/send",
		[]byte(`{"phoneNumber":"01012345678"}`))
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-RateLimit-Limit"))
	s.NotEmpty(rec.Header().Get("X-RateLimit-Remaining"))
}
