// Package processor implements the payment status state machine. It is pure
// computation: no I/O, no clocks, no delivery of side effects. Notification
// side effects are returned as intents for the caller to dispatch.
package processor

import (
	"strconv"

	"github.com/google/uuid"

	"bookedge/internal/event/models"
)

// Transition maps an event type and the current payment status to the
// resulting transition.
//
// Permitted transitions:
//
//	pending         → paid       (Paid)
//	pending | paid  → cancelled  (Cancelled)
//	pending         → failed     (Failed)
//
// An event arriving when the reservation is already in its target state is
// an idempotent no-op. Anything else is a conflict: the transition is
// rejected but the event is still recorded as processed, so the provider
// stops retrying and the mismatch surfaces for manual reconciliation.
func Transition(eventType models.EventType, current models.PaymentStatus) *models.Transition {
	t := &models.Transition{From: current}

	switch eventType {
	case models.EventTypePaid:
		switch current {
		case models.StatusPending:
			t.To = models.StatusPaid
		case models.StatusPaid:
			t.To = current
			t.NoOp = true
		default:
			t.To = current
			t.Conflict = true
		}
	case models.EventTypeCancelled:
		switch current {
		case models.StatusPending, models.StatusPaid:
			t.To = models.StatusCancelled
		case models.StatusCancelled:
			t.To = current
			t.NoOp = true
		default:
			t.To = current
			t.Conflict = true
		}
	case models.EventTypeFailed:
		switch current {
		case models.StatusPending:
			t.To = models.StatusFailed
		case models.StatusFailed:
			t.To = current
			t.NoOp = true
		default:
			t.To = current
			t.Conflict = true
		}
	default:
		t.To = current
		t.NoOp = true
	}
	return t
}

// AllowedFrom returns the statuses an event may transition from, for use as
// the guard of a conditional update.
func AllowedFrom(eventType models.EventType) []models.PaymentStatus {
	switch eventType {
	case models.EventTypePaid:
		return []models.PaymentStatus{models.StatusPending}
	case models.EventTypeCancelled:
		return []models.PaymentStatus{models.StatusPending, models.StatusPaid}
	case models.EventTypeFailed:
		return []models.PaymentStatus{models.StatusPending}
	}
	return nil
}

// ReservationInfo is what notifications need to know about the reservation.
type ReservationInfo struct {
	Ref      string
	UserRef  string
	ShopName string
	Amount   int64
}

// Notifications builds the intents an applied transition should emit.
// No-ops and conflicts emit nothing: a transition that did not happen must
// not notify anyone.
func Notifications(event *models.WebhookEvent, res *ReservationInfo, t *models.Transition) []models.NotificationIntent {
	if res == nil || !t.Applied() {
		return nil
	}

	switch t.To {
	case models.StatusPaid:
		return []models.NotificationIntent{{
			ID:           uuid.NewString(),
			Channel:      models.ChannelPush,
			TemplateID:   models.TemplatePaymentCompleted,
			RecipientRef: res.UserRef,
			Variables: map[string]string{
				"shopName":       res.ShopName,
				"amount":         formatAmount(res.Amount),
				"paymentId":      event.Data.PaymentID,
				"reservationRef": res.Ref,
			},
		}}
	case models.StatusCancelled:
		return []models.NotificationIntent{{
			ID:           uuid.NewString(),
			Channel:      models.ChannelPush,
			TemplateID:   models.TemplateReservationCancelled,
			RecipientRef: res.UserRef,
			Variables: map[string]string{
				"shopName":       res.ShopName,
				"reservationRef": res.Ref,
			},
		}}
	}
	return nil
}

// formatAmount renders a KRW amount: whole units, no decimals.
func formatAmount(amount int64) string {
	if amount < 0 {
		amount = 0
	}
	return strconv.FormatInt(amount, 10)
}
