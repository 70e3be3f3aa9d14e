package models

// Stable machine-readable reason codes for rate limit rejections. Clients key
// backoff behavior on these; the code distinguishes IP-scoped bursts from
// exhausted daily phone quotas without exposing counter internals.
const (
	ReasonIPRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ReasonDailyLimitExceeded  = "DAILY_LIMIT_EXCEEDED"
)

// ErrorBody is the error envelope shared by edge rejections.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RejectionResponse is the JSON body returned on rate limit violations.
type RejectionResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// ReasonFor maps a violated rule scope to its stable reason code.
func ReasonFor(scope Scope) string {
	if scope == ScopePhone {
		return ReasonDailyLimitExceeded
	}
	return ReasonIPRateLimitExceeded
}
