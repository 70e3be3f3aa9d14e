// Package credential verifies machine-caller credentials: shared secrets for
// first-party service routes and HMAC signatures for payment webhooks.
//
// All verification failures surface as a generic unauthorized error; the
// specific reason stays in the wrapped cause for server-side logs only.
package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	dErrors "bookedge/pkg/domainerrors"
)

// DefaultMaxSkew bounds how far a signed webhook timestamp may drift from
// the gateway clock before the delivery is considered a replay.
const DefaultMaxSkew = 5 * time.Minute

const unauthorizedMsg = "invalid credentials"

// SharedSecret verifies a per-route API key in constant time.
type SharedSecret struct {
	secret string
}

// NewSharedSecret creates a shared-secret verifier. An empty secret means
// the route is not configured and every caller is rejected.
func NewSharedSecret(secret string) *SharedSecret {
	return &SharedSecret{secret: secret}
}

// Verify checks the provided key against the configured secret.
func (s *SharedSecret) Verify(provided string) error {
	if s.secret == "" {
		return dErrors.Wrap(fmt.Errorf("shared secret not configured"),
			dErrors.CodeUnavailable, "service unavailable")
	}
	if provided == "" {
		return dErrors.Wrap(fmt.Errorf("api key missing"),
			dErrors.CodeUnauthorized, unauthorizedMsg)
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.secret)) != 1 {
		return dErrors.Wrap(fmt.Errorf("api key mismatch"),
			dErrors.CodeUnauthorized, unauthorizedMsg)
	}
	return nil
}

// WebhookSignature verifies HMAC-SHA256 signatures over raw webhook bodies.
//
// Two header formats are accepted, matching what the payment provider sends:
//
//	<unix-seconds>.<hex-signature>  — signs "<timestamp>.<body>", timestamp
//	                                  must be within the skew window
//	<hex-signature>                 — signs the body alone
type WebhookSignature struct {
	secret  []byte
	maxSkew time.Duration
	clock   func() time.Time
}

// SignatureOption configures a WebhookSignature verifier.
type SignatureOption func(*WebhookSignature)

// WithMaxSkew overrides the timestamp skew window.
func WithMaxSkew(skew time.Duration) SignatureOption {
	return func(v *WebhookSignature) {
		if skew > 0 {
			v.maxSkew = skew
		}
	}
}

// WithSignatureClock sets the clock function for testability.
func WithSignatureClock(clock func() time.Time) SignatureOption {
	return func(v *WebhookSignature) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// NewWebhookSignature creates a webhook signature verifier.
func NewWebhookSignature(secret string, opts ...SignatureOption) *WebhookSignature {
	v := &WebhookSignature{
		secret:  []byte(secret),
		maxSkew: DefaultMaxSkew,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the signature header against the raw request body. The body
// must be the exact bytes received on the wire; any re-serialization breaks
// the signature.
func (v *WebhookSignature) Verify(header string, body []byte) error {
	if len(v.secret) == 0 {
		return dErrors.Wrap(fmt.Errorf("webhook secret not configured"),
			dErrors.CodeUnavailable, "service unavailable")
	}
	if header == "" {
		return dErrors.Wrap(fmt.Errorf("signature header missing"),
			dErrors.CodeUnauthorized, unauthorizedMsg)
	}

	timestamp, provided, timestamped := strings.Cut(header, ".")
	if !timestamped {
		return v.compare(header, body)
	}

	requestTime, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return dErrors.Wrap(fmt.Errorf("malformed signature timestamp %q", timestamp),
			dErrors.CodeUnauthorized, unauthorizedMsg)
	}
	skew := v.clock().Sub(time.Unix(requestTime, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return dErrors.Wrap(fmt.Errorf("signature timestamp outside skew window: %s", skew),
			dErrors.CodeUnauthorized, unauthorizedMsg)
	}

	signed := make([]byte, 0, len(timestamp)+1+len(body))
	signed = append(signed, timestamp...)
	signed = append(signed, '.')
	signed = append(signed, body...)
	return v.compare(provided, signed)
}

func (v *WebhookSignature) compare(provided string, signed []byte) error {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(signed)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return dErrors.Wrap(fmt.Errorf("signature mismatch"),
			dErrors.CodeUnauthorized, unauthorizedMsg)
	}
	return nil
}

// Sign produces a timestamped signature header for the given body. Used by
// tests and the outbound retry tooling.
func (v *WebhookSignature) Sign(body []byte, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return timestamp + "." + hex.EncodeToString(mac.Sum(nil))
}
