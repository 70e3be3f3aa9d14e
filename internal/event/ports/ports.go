// Package ports defines the storage interface for webhook event application.
package ports

import (
	"context"

	"bookedge/internal/event/models"
	"bookedge/internal/event/processor"
)

// EventStore claims an event and applies its reservation transition as one
// atomic unit of work. Either both the idempotency record and the status
// change commit, or neither does; a claimed-but-unapplied state cannot
// exist.
type EventStore interface {
	// ApplyEvent returns FirstClaim=false without side effects when the
	// event id was already recorded. For first claims it resolves the
	// reservation, runs the state machine, and persists the guarded
	// transition. Storage failure is an error: the caller must fail closed
	// so the provider retries.
	ApplyEvent(ctx context.Context, event *models.WebhookEvent) (*models.ApplyResult, *processor.ReservationInfo, error)
}
