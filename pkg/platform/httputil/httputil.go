// Package httputil centralizes JSON response writing and domain error
// translation so handlers stay consistent.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "bookedge/pkg/domainerrors"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ToHTTPStatus maps a domain error code to an HTTP status code.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeMaintenance:
		return http.StatusServiceUnavailable
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeStateConflict:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeDuplicateEvent:
		// Duplicate deliveries are acknowledged, not rejected, so the
		// upstream provider stops retrying.
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// WriteError translates a domain error into a JSON error envelope.
// Internal errors omit the description so server details never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := ToHTTPStatus(code)

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) && de.Message != "" {
			body["error_description"] = de.Message
		}
	}
	WriteJSON(w, status, body)
}
