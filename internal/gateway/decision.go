// Package gateway orchestrates the admission stages for webhook deliveries
// and returns transport-agnostic decisions. It never touches HTTP framing;
// the transport layer maps decisions to responses.
package gateway

import (
	"time"

	"bookedge/internal/event/models"
)

// DecisionKind classifies the terminal outcome of a pipeline run.
type DecisionKind string

const (
	// DecisionAllow: every stage passed; for webhooks the event was applied
	// (or acknowledged as an ignorable type).
	DecisionAllow DecisionKind = "allow"
	// DecisionRateLimited: back off per RetryAfter.
	DecisionRateLimited DecisionKind = "rate_limited"
	// DecisionMaintenanceBlocked: the platform is closed; retry later.
	DecisionMaintenanceBlocked DecisionKind = "maintenance_blocked"
	// DecisionUnauthorized: credential check failed. Which check failed is
	// never part of the decision.
	DecisionUnauthorized DecisionKind = "unauthorized"
	// DecisionDuplicateEvent: already processed; acknowledged as success so
	// the provider stops retrying.
	DecisionDuplicateEvent DecisionKind = "duplicate_event"
	// DecisionStateConflict: the transition was rejected and recorded for
	// manual reconciliation.
	DecisionStateConflict DecisionKind = "state_conflict"
	// DecisionDependencyUnavailable: the ledger store failed; the delivery
	// is rejected so the provider retries.
	DecisionDependencyUnavailable DecisionKind = "dependency_unavailable"
	// DecisionInvalid: the payload failed validation after authentication.
	DecisionInvalid DecisionKind = "invalid"
)

// Decision is the pipeline's terminal verdict for one delivery.
type Decision struct {
	Kind       DecisionKind
	RetryAfter time.Duration // set for rate-limited decisions
	Err        error         // coded domain error for denials

	// Webhook outcome, populated on Allow/DuplicateEvent/StateConflict.
	EventID        string
	ReservationRef string
	NewStatus      models.PaymentStatus
	Notifications  []models.NotificationIntent
}

// Terminal reports whether the decision denies the request.
func (d *Decision) Terminal() bool {
	return d.Kind != DecisionAllow && d.Kind != DecisionDuplicateEvent
}
