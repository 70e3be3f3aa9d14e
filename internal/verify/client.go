// Package verify holds the HTTP clients for the external identity and OTP
// providers. The gateway admits and rate-limits these requests; the
// providers do the actual verification.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "bookedge/pkg/domain"
	dErrors "bookedge/pkg/domainerrors"
)

// IdentityClient starts phone-based identity verification with the PASS
// provider.
type IdentityClient struct {
	client  *http.Client
	baseURL string
	secret  string
}

// NewIdentityClient creates a provider client. An empty base URL leaves the
// client unconfigured; requests fail as unavailable.
func NewIdentityClient(baseURL, secret string) *IdentityClient {
	return &IdentityClient{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		secret:  secret,
	}
}

// RequestVerification asks the provider to start verification for the phone
// number and returns the provider's verification id.
func (c *IdentityClient) RequestVerification(ctx context.Context, phone domain.PhoneNumber) (string, error) {
	if c.baseURL == "" {
		return "", dErrors.New(dErrors.CodeUnavailable, "identity provider not configured")
	}

	payload := map[string]string{"phoneNumber": phone.String()}
	var result struct {
		VerificationID string `json:"verificationId"`
	}
	if err := postJSON(ctx, c.client, c.baseURL+"/identity-verifications", c.secret, payload, &result); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "identity provider request failed")
	}
	if result.VerificationID == "" {
		return "", dErrors.New(dErrors.CodeUnavailable, "identity provider returned no verification id")
	}
	return result.VerificationID, nil
}

// OTPClient sends one-time passcodes through the SMS provider.
type OTPClient struct {
	client  *http.Client
	baseURL string
	secret  string
}

// NewOTPClient creates a provider client.
func NewOTPClient(baseURL, secret string) *OTPClient {
	return &OTPClient{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		secret:  secret,
	}
}

// SendOTP asks the provider to deliver a passcode to the phone number.
func (c *OTPClient) SendOTP(ctx context.Context, phone domain.PhoneNumber) error {
	if c.baseURL == "" {
		return dErrors.New(dErrors.CodeUnavailable, "otp provider not configured")
	}

	payload := map[string]string{"phoneNumber": phone.String(), "channel": "sms"}
	if err := postJSON(ctx, c.client, c.baseURL+"/otp/send", c.secret, payload, nil); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "otp provider request failed")
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url, secret string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call provider: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider responded %d", resp.StatusCode)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
