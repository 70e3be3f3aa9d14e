package httptransport

import (
	"encoding/json"
	"net/http"

	"bookedge/internal/notify"
	dErrors "bookedge/pkg/domainerrors"
	"bookedge/pkg/platform/httputil"
)

// handleNotifyProbe answers unauthenticated GET probes on the notification
// routes so callers can check availability without a key.
func (h *Handlers) handleNotifyProbe(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "configured"})
}

// handleAlimtalkSend accepts a KakaoTalk notification request from a
// first-party service. The shared-secret middleware has already
// authenticated the caller.
func (h *Handlers) handleAlimtalkSend(w http.ResponseWriter, r *http.Request) {
	var req notify.AlimtalkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	messageID, err := h.notifier.EnqueueAlimtalk(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "notification queued",
		"data": map[string]string{
			"messageId": messageID,
			"bookingId": req.Data.BookingID,
		},
	})
}

// handlePushSend accepts a push notification request from a first-party
// service.
func (h *Handlers) handlePushSend(w http.ResponseWriter, r *http.Request) {
	var req notify.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	messageID, err := h.notifier.EnqueuePush(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"messageId":  messageID,
			"recipients": len(req.Recipients()),
		},
	})
}
