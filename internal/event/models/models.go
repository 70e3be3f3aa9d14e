// Package models defines the payment webhook event types and the records
// the gateway keeps about them.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	dErrors "bookedge/pkg/domainerrors"
)

// EventType identifies a payment provider webhook event.
type EventType string

const (
	EventTypePaid      EventType = "Transaction.Paid"
	EventTypeCancelled EventType = "Transaction.Cancelled"
	EventTypeFailed    EventType = "Transaction.Failed"
)

// Known reports whether the gateway processes this event type. Unknown types
// are acknowledged and ignored so provider-side additions never cause retry
// storms.
func (t EventType) Known() bool {
	switch t {
	case EventTypePaid, EventTypeCancelled, EventTypeFailed:
		return true
	}
	return false
}

// PaymentStatus is the reservation's payment state the gateway transitions.
// The booking domain owns the rest of the reservation lifecycle.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusPaid      PaymentStatus = "paid"
	StatusCancelled PaymentStatus = "cancelled"
	StatusFailed    PaymentStatus = "failed"
)

// WebhookEvent is the parsed provider payload. Signature verification runs
// against the raw bytes before this struct ever exists.
type WebhookEvent struct {
	Type      EventType `json:"type"`
	Timestamp string    `json:"timestamp"`
	Data      EventData `json:"data"`
}

// EventData carries the provider's transaction identifiers.
type EventData struct {
	PaymentID     string `json:"paymentId"`
	TransactionID string `json:"transactionId,omitempty"`
	StoreID       string `json:"storeId,omitempty"`
	// CustomData is the opaque string attached at payment creation; when it
	// is JSON with a reservationId field it resolves the reservation
	// directly, skipping the payment-id lookup.
	CustomData string `json:"customData,omitempty"`
}

// Validate checks the fields the pipeline depends on.
func (e *WebhookEvent) Validate() error {
	if e.Data.PaymentID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "paymentId is required")
	}
	return nil
}

// EventID returns the provider-assigned identifier used for idempotency.
// The transaction id is authoritative; deliveries without one key on the
// payment id plus event type, which is stable across retries of the same
// event.
func (e *WebhookEvent) EventID() string {
	if e.Data.TransactionID != "" {
		return e.Data.TransactionID
	}
	return e.Data.PaymentID + ":" + string(e.Type)
}

// ReservationRefFromCustomData extracts a reservation reference from the
// custom data, if present.
func (e *WebhookEvent) ReservationRefFromCustomData() string {
	if e.Data.CustomData == "" {
		return ""
	}
	var payload struct {
		ReservationID string `json:"reservationId"`
	}
	if err := json.Unmarshal([]byte(e.Data.CustomData), &payload); err != nil {
		return ""
	}
	return payload.ReservationID
}

// IdempotencyRecord is the durable row proving an event was processed.
type IdempotencyRecord struct {
	EventID     string
	EventType   EventType
	PaymentID   string
	ProcessedAt time.Time
	OutcomeHash string
}

// Transition is the processor's verdict for one event against the current
// payment status.
type Transition struct {
	From     PaymentStatus
	To       PaymentStatus
	Conflict bool // event does not permit this transition; record, don't retry
	NoOp     bool // already in the target state; idempotent success
}

// Applied reports whether the reservation row should actually change.
func (t *Transition) Applied() bool {
	return !t.Conflict && !t.NoOp
}

// ApplyResult is the outcome of the atomic claim-and-apply unit.
type ApplyResult struct {
	FirstClaim     bool
	ReservationRef string // empty when no reservation maps to the payment
	Transition     *Transition
}

// NotificationChannel selects the delivery mechanism for an intent.
type NotificationChannel string

const (
	ChannelPush     NotificationChannel = "push"
	ChannelAlimtalk NotificationChannel = "alimtalk"
)

// Notification template identifiers.
const (
	TemplatePaymentCompleted     = "payment_completed"
	TemplateReservationCancelled = "reservation_cancelled"
)

// NotificationIntent describes a notification the gateway wants sent. The
// processor returns intents; it never performs delivery itself.
type NotificationIntent struct {
	ID           string
	Channel      NotificationChannel
	TemplateID   string
	RecipientRef string
	Variables    map[string]string
}

// OutcomeHash fingerprints what an event did, for the idempotency record.
func OutcomeHash(eventID string, from, to PaymentStatus) string {
	sum := sha256.Sum256([]byte(eventID + "|" + string(from) + "|" + string(to)))
	return hex.EncodeToString(sum[:])
}
