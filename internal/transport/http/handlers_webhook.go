package httptransport

import (
	"io"
	"net/http"
	"strconv"

	"bookedge/internal/gateway"
	dErrors "bookedge/pkg/domainerrors"
	"bookedge/pkg/platform/httputil"
	"bookedge/pkg/requestcontext"
)

// SignatureHeader is the header the payment provider signs deliveries with.
const SignatureHeader = "PortOne-Signature"

// maxWebhookBody bounds the raw body read. Provider events are small; a
// megabyte is already generous.
const maxWebhookBody = 1 << 20

type webhookResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Data    *webhookResponseData `json:"data,omitempty"`
}

type webhookResponseData struct {
	EventID        string `json:"eventId"`
	ReservationRef string `json:"reservationId,omitempty"`
	Status         string `json:"status,omitempty"`
}

// handlePaymentWebhook reads the raw body, runs the admission pipeline, and
// maps the decision to an HTTP response. The raw bytes go to the pipeline
// untouched: signature verification must see exactly what the provider
// sent.
func (h *Handlers) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable request body"))
		return
	}
	if len(body) > maxWebhookBody {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body too large"))
		return
	}

	decision := h.pipeline.ProcessWebhook(ctx, &gateway.WebhookRequest{
		ClientIP:        requestcontext.ClientIP(ctx),
		SignatureHeader: r.Header.Get(SignatureHeader),
		Body:            body,
		Privileged:      requestcontext.IsAdmin(ctx),
	})

	switch decision.Kind {
	case gateway.DecisionAllow:
		h.dispatchIntents(r, decision)
		httputil.WriteJSON(w, http.StatusOK, &webhookResponse{
			Success: true,
			Message: "event processed",
			Data: &webhookResponseData{
				EventID:        decision.EventID,
				ReservationRef: decision.ReservationRef,
				Status:         string(decision.NewStatus),
			},
		})
	case gateway.DecisionDuplicateEvent:
		// Same success signal as the first delivery so the provider stops
		// retrying.
		httputil.WriteJSON(w, http.StatusOK, &webhookResponse{
			Success: true,
			Message: "event already processed",
			Data:    &webhookResponseData{EventID: decision.EventID},
		})
	case gateway.DecisionRateLimited:
		w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
		httputil.WriteError(w, decision.Err)
	default:
		httputil.WriteError(w, decision.Err)
	}
}

// dispatchIntents queues the notifications an applied event produced.
// Best effort: the event is committed either way, so a failed enqueue is
// logged, not returned.
func (h *Handlers) dispatchIntents(r *http.Request, decision *gateway.Decision) {
	if h.notifier == nil || len(decision.Notifications) == 0 {
		return
	}
	ctx := r.Context()
	if err := h.notifier.EnqueueIntents(ctx, decision.Notifications); err != nil {
		h.logger.ErrorContext(ctx, "failed to queue webhook notifications",
			"event_id", decision.EventID,
			"error", err,
		)
	}
}
