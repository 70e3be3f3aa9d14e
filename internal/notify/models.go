// Package notify accepts notification requests from first-party services
// and dispatches them to the delivery providers through a bounded worker
// queue. The gateway owns admission and queuing; providers own delivery.
package notify

import dErrors "bookedge/pkg/domainerrors"

// AlimtalkType classifies a KakaoTalk notification request.
type AlimtalkType string

const (
	TypeBookingConfirmation AlimtalkType = "booking_confirmation"
	TypeBookingCancellation AlimtalkType = "booking_cancellation"
	TypeBookingReminder     AlimtalkType = "booking_reminder"
	TypePartnerNewBooking   AlimtalkType = "partner_new_booking"
	TypePartnerCancellation AlimtalkType = "partner_cancellation"
)

// Valid reports whether the type is one the gateway dispatches.
func (t AlimtalkType) Valid() bool {
	switch t {
	case TypeBookingConfirmation, TypeBookingCancellation, TypeBookingReminder,
		TypePartnerNewBooking, TypePartnerCancellation:
		return true
	}
	return false
}

// AlimtalkRequest is the payload of POST /api/notifications/alimtalk.
type AlimtalkRequest struct {
	Type AlimtalkType `json:"type"`
	Data AlimtalkData `json:"data"`
}

// AlimtalkData carries the booking fields the templates interpolate.
type AlimtalkData struct {
	BookingID   string `json:"bookingId"`
	PhoneNumber string `json:"phoneNumber"`
	ShopName    string `json:"shopName,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Validate checks the fields every template needs.
func (r *AlimtalkRequest) Validate() error {
	if !r.Type.Valid() {
		return dErrors.New(dErrors.CodeBadRequest, "unsupported notification type")
	}
	if r.Data.BookingID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "bookingId is required")
	}
	if r.Data.PhoneNumber == "" {
		return dErrors.New(dErrors.CodeBadRequest, "phoneNumber is required")
	}
	return nil
}

// PushRequest is the payload of POST /api/fcm/send.
type PushRequest struct {
	UserID       string            `json:"user_id,omitempty"`
	UserIDs      []string          `json:"user_ids,omitempty"`
	Notification PushNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

// PushNotification is the visible part of a push message.
type PushNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// Recipients returns the normalized recipient list.
func (r *PushRequest) Recipients() []string {
	if r.UserID != "" {
		return []string{r.UserID}
	}
	return r.UserIDs
}

// Validate checks the fields delivery needs.
func (r *PushRequest) Validate() error {
	if r.Notification.Body == "" {
		return dErrors.New(dErrors.CodeBadRequest, "notification body is required")
	}
	if len(r.Recipients()) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "at least one recipient is required")
	}
	return nil
}

// Message is one queued delivery.
type Message struct {
	ID       string
	Alimtalk *AlimtalkRequest
	Push     *PushRequest
}
