package notify

import (
	"context"
	"fmt"

	eventmodels "bookedge/internal/event/models"
	dErrors "bookedge/pkg/domainerrors"
)

// EnqueueIntents queues the notification intents emitted by webhook event
// application. Delivery is best effort: a failed enqueue is reported but
// must never fail the webhook acknowledgement, so callers log and move on.
func (d *Dispatcher) EnqueueIntents(ctx context.Context, intents []eventmodels.NotificationIntent) error {
	for _, intent := range intents {
		if err := d.enqueueIntent(ctx, intent); err != nil {
			return fmt.Errorf("intent %s (%s): %w", intent.ID, intent.TemplateID, err)
		}
	}
	return nil
}

func (d *Dispatcher) enqueueIntent(ctx context.Context, intent eventmodels.NotificationIntent) error {
	switch intent.Channel {
	case eventmodels.ChannelPush:
		title, body := renderPushTemplate(intent)
		_, err := d.EnqueuePush(ctx, &PushRequest{
			UserID:       intent.RecipientRef,
			Notification: PushNotification{Title: title, Body: body},
			Data:         intent.Variables,
		})
		return err
	case eventmodels.ChannelAlimtalk:
		_, err := d.EnqueueAlimtalk(ctx, &AlimtalkRequest{
			Type: TypeBookingConfirmation,
			Data: AlimtalkData{
				BookingID:   intent.Variables["reservationRef"],
				PhoneNumber: intent.RecipientRef,
				ShopName:    intent.Variables["shopName"],
			},
		})
		return err
	}
	return dErrors.New(dErrors.CodeBadRequest, "unknown notification channel")
}

func renderPushTemplate(intent eventmodels.NotificationIntent) (title, body string) {
	shop := intent.Variables["shopName"]
	switch intent.TemplateID {
	case eventmodels.TemplatePaymentCompleted:
		return "Payment completed",
			fmt.Sprintf("Your payment of %s KRW for %s is complete.", intent.Variables["amount"], shop)
	case eventmodels.TemplateReservationCancelled:
		return "Reservation cancelled",
			fmt.Sprintf("Your reservation at %s has been cancelled.", shop)
	}
	return "", intent.TemplateID
}
