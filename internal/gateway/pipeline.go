package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	accessmodels "bookedge/internal/accessgate/models"
	"bookedge/internal/event/models"
	"bookedge/internal/event/ports"
	"bookedge/internal/event/processor"
	"bookedge/internal/platform/metrics"
	ratelimitmodels "bookedge/internal/ratelimit/models"
	"bookedge/internal/ratelimit/service"
	dErrors "bookedge/pkg/domainerrors"
)

// AccessStater reads the platform access state.
type AccessStater interface {
	AccessState(ctx context.Context) *accessmodels.AccessState
}

// RateLimitPolicy evaluates route-class rules against request subjects.
type RateLimitPolicy interface {
	Evaluate(ctx context.Context, class ratelimitmodels.RouteClass, subjects service.Subjects) (*ratelimitmodels.RateLimitResult, error)
}

// SignatureVerifier authenticates a webhook delivery against its raw body.
type SignatureVerifier interface {
	Verify(header string, body []byte) error
}

// WebhookRequest is a webhook delivery stripped of transport details.
type WebhookRequest struct {
	ClientIP        string
	SignatureHeader string
	Body            []byte // raw bytes as received; signature input
	Privileged      bool   // verified admin caller, bypasses maintenance
}

// Pipeline runs the admission stages in strict order: access gate, rate
// limit, credential verification, then the atomic claim-and-apply unit.
// The first failing stage produces the terminal decision.
type Pipeline struct {
	gate      AccessStater
	policy    RateLimitPolicy
	signature SignatureVerifier
	events    ports.EventStore
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New creates a webhook admission pipeline.
func New(gate AccessStater, policy RateLimitPolicy, signature SignatureVerifier, events ports.EventStore, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		gate:      gate,
		policy:    policy,
		signature: signature,
		events:    events,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessWebhook runs a payment webhook delivery through all stages.
func (p *Pipeline) ProcessWebhook(ctx context.Context, req *WebhookRequest) *Decision {
	if d := p.checkAccess(ctx, req); d != nil {
		return d
	}
	if d := p.checkRateLimit(ctx, req); d != nil {
		return d
	}

	if err := p.signature.Verify(req.SignatureHeader, req.Body); err != nil {
		p.blocked("unauthorized")
		p.logger.WarnContext(ctx, "webhook signature rejected", "error", err)
		return &Decision{Kind: DecisionUnauthorized, Err: err}
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return &Decision{
			Kind: DecisionInvalid,
			Err:  dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed event payload"),
		}
	}
	if err := event.Validate(); err != nil {
		return &Decision{Kind: DecisionInvalid, Err: err}
	}

	if !event.Type.Known() {
		// Providers add event types; acknowledging them keeps their retry
		// queues quiet without any state change on our side.
		p.recordEvent(string(event.Type), "ignored")
		p.logger.InfoContext(ctx, "ignoring unknown event type",
			"type", event.Type,
			"payment_id", event.Data.PaymentID,
		)
		return &Decision{Kind: DecisionAllow, EventID: event.EventID()}
	}

	return p.applyEvent(ctx, &event)
}

// applyEvent runs the claim-and-apply unit. The unit is detached from the
// client's context: once a delivery reaches this stage, a disconnect must
// not leave the claim half done.
func (p *Pipeline) applyEvent(ctx context.Context, event *models.WebhookEvent) *Decision {
	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	result, info, err := p.events.ApplyEvent(applyCtx, event)
	if err != nil {
		p.recordEvent(string(event.Type), "unavailable")
		p.logger.ErrorContext(ctx, "event application failed",
			"event_id", event.EventID(),
			"error", err,
		)
		return &Decision{Kind: DecisionDependencyUnavailable, Err: err}
	}

	decision := &Decision{EventID: event.EventID(), ReservationRef: result.ReservationRef}

	switch {
	case !result.FirstClaim:
		if p.metrics != nil {
			p.metrics.DuplicateEvents.Inc()
		}
		p.recordEvent(string(event.Type), "duplicate")
		p.logger.InfoContext(ctx, "duplicate event acknowledged", "event_id", event.EventID())
		decision.Kind = DecisionDuplicateEvent

	case result.Transition != nil && result.Transition.Conflict:
		if p.metrics != nil {
			p.metrics.StateConflicts.Inc()
		}
		p.recordEvent(string(event.Type), "conflict")
		p.logger.WarnContext(ctx, "event transition conflict recorded",
			"event_id", event.EventID(),
			"reservation", result.ReservationRef,
			"current_status", result.Transition.From,
		)
		decision.Kind = DecisionStateConflict
		decision.NewStatus = result.Transition.From
		decision.Err = dErrors.New(dErrors.CodeStateConflict,
			"event conflicts with current payment state")

	default:
		p.recordEvent(string(event.Type), "applied")
		decision.Kind = DecisionAllow
		if result.Transition != nil {
			decision.NewStatus = result.Transition.To
			decision.Notifications = processor.Notifications(event, info, result.Transition)
		}
	}
	return decision
}

func (p *Pipeline) checkAccess(ctx context.Context, req *WebhookRequest) *Decision {
	state := p.gate.AccessState(ctx)
	if !state.MaintenanceMode || req.Privileged {
		return nil
	}
	p.blocked("maintenance")
	return &Decision{
		Kind: DecisionMaintenanceBlocked,
		Err:  dErrors.New(dErrors.CodeMaintenance, "Service is under maintenance. Please try again later."),
	}
}

func (p *Pipeline) checkRateLimit(ctx context.Context, req *WebhookRequest) *Decision {
	result, err := p.policy.Evaluate(ctx, ratelimitmodels.ClassGeneral,
		service.Subjects{IP: req.ClientIP})
	if err != nil {
		// Fail open; the evaluation error is already logged by the policy.
		return nil
	}
	if result.Allowed {
		return nil
	}
	p.blocked("rate_limit")
	return &Decision{
		Kind:       DecisionRateLimited,
		RetryAfter: service.RetryAfter(result),
		Err:        dErrors.New(dErrors.CodeRateLimited, "Too many requests. Please try again later."),
	}
}

func (p *Pipeline) blocked(stage string) {
	if p.metrics != nil {
		p.metrics.RequestsBlocked.WithLabelValues(stage).Inc()
	}
}

func (p *Pipeline) recordEvent(eventType, outcome string) {
	if p.metrics != nil {
		p.metrics.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
	}
}
