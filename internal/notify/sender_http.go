package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSender posts notifications to the delivery providers' HTTP APIs.
type HTTPSender struct {
	client      *http.Client
	alimtalkURL string
	pushURL     string
	apiKey      string
}

// NewHTTPSender creates a provider-backed sender. Empty URLs disable the
// corresponding channel.
func NewHTTPSender(alimtalkURL, pushURL, apiKey string) *HTTPSender {
	return &HTTPSender{
		client:      &http.Client{Timeout: 10 * time.Second},
		alimtalkURL: alimtalkURL,
		pushURL:     pushURL,
		apiKey:      apiKey,
	}
}

func (s *HTTPSender) SendAlimtalk(ctx context.Context, req *AlimtalkRequest) error {
	if s.alimtalkURL == "" {
		return fmt.Errorf("alimtalk provider not configured")
	}
	return s.post(ctx, s.alimtalkURL, req)
}

func (s *HTTPSender) SendPush(ctx context.Context, req *PushRequest) error {
	if s.pushURL == "" {
		return fmt.Errorf("push provider not configured")
	}
	return s.post(ctx, s.pushURL, req)
}

func (s *HTTPSender) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
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
	return nil
}
