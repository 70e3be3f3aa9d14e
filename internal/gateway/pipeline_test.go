package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accessmodels "bookedge/internal/accessgate/models"
	"bookedge/internal/credential"
	"bookedge/internal/event/models"
	"bookedge/internal/event/store"
	"bookedge/internal/gateway"
	ratelimitmodels "bookedge/internal/ratelimit/models"
	"bookedge/internal/ratelimit/service"
	dErrors "bookedge/pkg/domainerrors"
)

type fakeGate struct {
	maintenance bool
}

func (g *fakeGate) AccessState(context.Context) *accessmodels.AccessState {
	return &accessmodels.AccessState{MaintenanceMode: g.maintenance, AllowRegistration: true}
}

type fakePolicy struct {
	result *ratelimitmodels.RateLimitResult
	err    error
}

func (p *fakePolicy) Evaluate(context.Context, ratelimitmodels.RouteClass, service.Subjects) (*ratelimitmodels.RateLimitResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.result != nil {
		return p.result, nil
	}
	return &ratelimitmodels.RateLimitResult{Allowed: true}, nil
}

const webhookSecret = "whsec_test"

type fixture struct {
	gate     *fakeGate
	policy   *fakePolicy
	events   *store.MemoryStore
	verifier *credential.WebhookSignature
	pipeline *gateway.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		gate:     &fakeGate{},
		policy:   &fakePolicy{},
		events:   store.NewMemory(),
		verifier: credential.NewWebhookSignature(webhookSecret),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.pipeline = gateway.New(f.gate, f.policy, f.verifier, f.events, logger)
	return f
}

func (f *fixture) signedRequest(t *testing.T, event *models.WebhookEvent) *gateway.WebhookRequest {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return &gateway.WebhookRequest{
		ClientIP:        "203.0.113.7",
		SignatureHeader: f.verifier.Sign(body, time.Now()),
		Body:            body,
	}
}

func paidEvent(txID, paymentID string) *models.WebhookEvent {
	return &models.WebhookEvent{
		Type:      models.EventTypePaid,
		Timestamp: "2026-03-01T12:00:00Z",
		Data:      models.EventData{PaymentID: paymentID, TransactionID: txID},
	}
}

func TestProcessWebhookAppliesFirstDelivery(t *testing.T) {
	f := newFixture(t)
	f.events.AddReservation("resv_1", "user_1", "Nail Atelier", 55000, models.StatusPending, "pay_1")

	decision := f.pipeline.ProcessWebhook(context.Background(),
		f.signedRequest(t, paidEvent("tx_1", "pay_1")))

	assert.Equal(t, gateway.DecisionAllow, decision.Kind)
	assert.False(t, decision.Terminal())
	assert.Equal(t, "tx_1", decision.EventID)
	assert.Equal(t, "resv_1", decision.ReservationRef)
	assert.Equal(t, models.StatusPaid, decision.NewStatus)
	require.Len(t, decision.Notifications, 1)
	assert.Equal(t, models.TemplatePaymentCompleted, decision.Notifications[0].TemplateID)

	status, _ := f.events.Status("resv_1")
	assert.Equal(t, models.StatusPaid, status)
}

func TestProcessWebhookReplaysApplyOnce(t *testing.T) {
	f := newFixture(t)
	f.events.AddReservation("resv_1", "user_1", "Nail Atelier", 55000, models.StatusPending, "pay_1")

	event := paidEvent("tx_1", "pay_1")

	first := f.pipeline.ProcessWebhook(context.Background(), f.signedRequest(t, event))
	require.Equal(t, gateway.DecisionAllow, first.Kind)

	for i := 0; i < 5; i++ {
		replay := f.pipeline.ProcessWebhook(context.Background(), f.signedRequest(t, event))
		assert.Equal(t, gateway.DecisionDuplicateEvent, replay.Kind, "replay %d", i+1)
		assert.False(t, replay.Terminal(), "duplicates acknowledge as success")
		assert.Empty(t, replay.Notifications, "replays never re-notify")
	}

	status, _ := f.events.Status("resv_1")
	assert.Equal(t, models.StatusPaid, status)
}

func TestProcessWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)

	req := f.signedRequest(t, paidEvent("tx_1", "pay_1"))
	req.Body = append(req.Body, ' ')

	decision := f.pipeline.ProcessWebhook(context.Background(), req)
	assert.Equal(t, gateway.DecisionUnauthorized, decision.Kind)
	assert.True(t, decision.Terminal())
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(decision.Err))
	assert.False(t, f.events.Claimed("tx_1"), "unauthenticated deliveries never reach the ledger")
}

func TestProcessWebhookMaintenanceBlocks(t *testing.T) {
	f := newFixture(t)
	f.gate.maintenance = true

	decision := f.pipeline.ProcessWebhook(context.Background(),
		f.signedRequest(t, paidEvent("tx_1", "pay_1")))
	assert.Equal(t, gateway.DecisionMaintenanceBlocked, decision.Kind)

	privileged := f.signedRequest(t, paidEvent("tx_1", "pay_1"))
	privileged.Privileged = true
	decision = f.pipeline.ProcessWebhook(context.Background(), privileged)
	assert.NotEqual(t, gateway.DecisionMaintenanceBlocked, decision.Kind)
}

func TestProcessWebhookRateLimited(t *testing.T) {
	f := newFixture(t)
	f.policy.result = &ratelimitmodels.RateLimitResult{
		Allowed:    false,
		RetryAfter: 30,
		Scope:      ratelimitmodels.ScopeIP,
	}

	decision := f.pipeline.ProcessWebhook(context.Background(),
		f.signedRequest(t, paidEvent("tx_1", "pay_1")))
	assert.Equal(t, gateway.DecisionRateLimited, decision.Kind)
	assert.Equal(t, 30*time.Second, decision.RetryAfter)
}

func TestProcessWebhookConflictRecorded(t *testing.T) {
	f := newFixture(t)
	f.events.AddReservation("resv_1", "user_1", "", 0, models.StatusCancelled, "pay_1")

	decision := f.pipeline.ProcessWebhook(context.Background(),
		f.signedRequest(t, paidEvent("tx_1", "pay_1")))

	assert.Equal(t, gateway.DecisionStateConflict, decision.Kind)
	assert.Equal(t, dErrors.CodeStateConflict, dErrors.CodeOf(decision.Err))
	assert.Empty(t, decision.Notifications)

	status, _ := f.events.Status("resv_1")
	assert.Equal(t, models.StatusCancelled, status, "conflicting events never overwrite state")

	// The conflict was recorded: the provider's retry is a duplicate.
	replay := f.pipeline.ProcessWebhook(context.Background(),
		f.signedRequest(t, paidEvent("tx_1", "pay_1")))
	assert.Equal(t, gateway.DecisionDuplicateEvent, replay.Kind)
}

func TestProcessWebhookLedgerFailureFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.events.FailWith(errors.New("ledger down"))

	decision := f.pipeline.ProcessWebhook(context.Background(),
		f.signedRequest(t, paidEvent("tx_1", "pay_1")))

	assert.Equal(t, gateway.DecisionDependencyUnavailable, decision.Kind)
	assert.True(t, decision.Terminal())
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(decision.Err))
}

func TestProcessWebhookIgnoresUnknownEventTypes(t *testing.T) {
	f := newFixture(t)

	event := paidEvent("tx_1", "pay_1")
	event.Type = models.EventType("Transaction.Ready")

	decision := f.pipeline.ProcessWebhook(context.Background(), f.signedRequest(t, event))
	assert.Equal(t, gateway.DecisionAllow, decision.Kind)
	assert.False(t, f.events.Claimed("tx_1"), "ignored types never reach the ledger")
}

func TestProcessWebhookRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)

	body := []byte("not json at all")
	req := &gateway.WebhookRequest{
		ClientIP:        "203.0.113.7",
		SignatureHeader: f.verifier.Sign(body, time.Now()),
		Body:            body,
	}

	decision := f.pipeline.ProcessWebhook(context.Background(), req)
	assert.Equal(t, gateway.DecisionInvalid, decision.Kind)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(decision.Err))
}

func TestProcessWebhookClientDisconnectDoesNotAbortApply(t *testing.T) {
	f := newFixture(t)
	f.events.AddReservation("resv_1", "user_1", "", 0, models.StatusPending, "pay_1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // client already gone

	decision := f.pipeline.ProcessWebhook(ctx, f.signedRequest(t, paidEvent("tx_1", "pay_1")))
	assert.Equal(t, gateway.DecisionAllow, decision.Kind)

	status, _ := f.events.Status("resv_1")
	assert.Equal(t, models.StatusPaid, status, "a cancelled request context must not abort the claim-and-apply unit")
}
