// Package httptransport is the thin HTTP layer over the gateway services.
// Handlers decode, delegate, and encode; admission logic lives in the
// middleware chain and the webhook pipeline.
package httptransport

import (
	"context"
	"log/slog"

	accessmodels "bookedge/internal/accessgate/models"
	eventmodels "bookedge/internal/event/models"
	"bookedge/internal/gateway"
	"bookedge/internal/notify"
	domain "bookedge/pkg/domain"
)

// WebhookPipeline runs payment webhook deliveries through the admission
// stages.
type WebhookPipeline interface {
	ProcessWebhook(ctx context.Context, req *gateway.WebhookRequest) *gateway.Decision
}

// AccessStater reads the platform access state for the settings route.
type AccessStater interface {
	AccessState(ctx context.Context) *accessmodels.AccessState
}

// IdentityService starts phone identity verification with the provider.
type IdentityService interface {
	RequestVerification(ctx context.Context, phone domain.PhoneNumber) (string, error)
}

// OTPService delivers one-time passcodes.
type OTPService interface {
	SendOTP(ctx context.Context, phone domain.PhoneNumber) error
}

// Notifier queues notification requests for delivery.
type Notifier interface {
	EnqueueAlimtalk(ctx context.Context, req *notify.AlimtalkRequest) (string, error)
	EnqueuePush(ctx context.Context, req *notify.PushRequest) (string, error)
	EnqueueIntents(ctx context.Context, intents []eventmodels.NotificationIntent) error
}

// Handlers holds the route handlers and their collaborators.
type Handlers struct {
	logger   *slog.Logger
	pipeline WebhookPipeline
	gate     AccessStater
	identity IdentityService
	otp      OTPService
	notifier Notifier
}

// NewHandlers creates the HTTP handlers.
func NewHandlers(
	logger *slog.Logger,
	pipeline WebhookPipeline,
	gate AccessStater,
	identity IdentityService,
	otp OTPService,
	notifier Notifier,
) *Handlers {
	return &Handlers{
		logger:   logger,
		pipeline: pipeline,
		gate:     gate,
		identity: identity,
		otp:      otp,
		notifier: notifier,
	}
}
