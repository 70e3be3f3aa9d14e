package domain

import (
	"strings"

	dErrors "bookedge/pkg/domainerrors"
)

// PhoneNumber is a Korean mobile number normalized to E.164 (+8210xxxxxxxx).
// Invariant: the value always holds a valid, normalized number.
//
// Usage: construct via ParsePhoneNumber at trust boundaries; direct casting
// bypasses validation. Rate-limit subjects key on the normalized form so
// "010-1234-5678" and "+82-10-1234-5678" count against the same window.
type PhoneNumber string

// ParsePhoneNumber constructs a PhoneNumber from external input.
// Accepted input forms: 010xxxxxxxx, 010-xxxx-xxxx (separators stripped),
// and the already-normalized +8210xxxxxxxx.
//
// Errors: returns CodeBadRequest when the value is empty or not a Korean
// mobile number. Malformed input is rejected here, before any rate-limit
// quota is consumed.
func ParsePhoneNumber(s string) (PhoneNumber, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "phone number cannot be empty")
	}

	cleaned := strings.NewReplacer("-", "", " ", "").Replace(s)
	if strings.HasPrefix(cleaned, "+8210") {
		cleaned = "010" + cleaned[5:]
	}

	if !isKoreanMobile(cleaned) {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid phone number format")
	}

	// 010xxxxxxxx -> +8210xxxxxxxx
	return PhoneNumber("+82" + cleaned[1:]), nil
}

// isKoreanMobile reports whether cleaned is an 11-digit number starting 010.
func isKoreanMobile(cleaned string) bool {
	if len(cleaned) != 11 || !strings.HasPrefix(cleaned, "010") {
		return false
	}
	for _, c := range cleaned {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// String returns the normalized E.164 representation.
func (p PhoneNumber) String() string {
	return string(p)
}
