package httptransport

import (
	"encoding/json"
	"net/http"

	domain "bookedge/pkg/domain"
	dErrors "bookedge/pkg/domainerrors"
	"bookedge/pkg/platform/httputil"
	"bookedge/pkg/requestcontext"
)

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// decodePhone parses and validates the phone payload. The rate limit
// middleware has already validated it once to extract the quota subject;
// decoding again here keeps the handler self-contained.
func decodePhone(r *http.Request) (domain.PhoneNumber, error) {
	var req phoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return domain.ParsePhoneNumber(req.PhoneNumber)
}

// handleIdentityRequest starts phone-based identity verification.
func (h *Handlers) handleIdentityRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	phone, err := decodePhone(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	verificationID, err := h.identity.RequestVerification(ctx, phone)
	if err != nil {
		h.logger.ErrorContext(ctx, "identity verification request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"verificationId": verificationID,
	})
}

// handleOTPSend delivers a one-time passcode to the phone number.
func (h *Handlers) handleOTPSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	phone, err := decodePhone(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.otp.SendOTP(ctx, phone); err != nil {
		h.logger.ErrorContext(ctx, "otp send failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
