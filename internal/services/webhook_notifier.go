package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"creator-ledger/pkg/logging"
)

// SignatureHeader carries the HMAC-SHA256 of the webhook body
const SignatureHeader = "X-Ledger-Signature"

// WebhookNotifier posts integrity alerts to an operator webhook
type WebhookNotifier struct {
	url         string
	secret      string
	httpClient  *http.Client
	retryDelays []time.Duration
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// Retry schedule: 1s, 5s (3 attempts total)
		retryDelays: []time.Duration{1 * time.Second, 5 * time.Second},
	}
}

// WebhookPayload is the body posted to the webhook
type WebhookPayload struct {
	Event     string         `json:"event"` // ledger.integrity_failed
	Severity  string         `json:"severity"`
	Summary   string         `json:"summary"`
	Alert     IntegrityAlert `json:"alert"`
	Timestamp string         `json:"timestamp"` // ISO 8601 format
}

// NotifyIntegrityFailure posts the alert, retrying on failure
func (wn *WebhookNotifier) NotifyIntegrityFailure(ctx context.Context, alert IntegrityAlert) error {
	payload := WebhookPayload{
		Event:     "ledger.integrity_failed",
		Severity:  "critical",
		Summary:   alert.Summary(),
		Alert:     alert,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	attempts := len(wn.retryDelays) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		err = wn.sendWebhook(ctx, body)
		if err == nil {
			logging.Infof("Alert webhook sent - run: %s, attempt: %d", alert.RunID, attempt+1)
			return nil
		}
		logging.Errorf("Alert webhook failed - run: %s, attempt: %d, error: %v", alert.RunID, attempt+1, err)

		if attempt < len(wn.retryDelays) {
			select {
			case <-time.After(wn.retryDelays[attempt]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("alert webhook failed after %d attempts: %w", attempts, err)
}

func (wn *WebhookNotifier) sendWebhook(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CreatorLedger-Webhook/1.0")
	if wn.secret != "" {
		req.Header.Set(SignatureHeader, SignPayload(body, wn.secret))
	}

	resp, err := wn.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// SignPayload returns the hex HMAC-SHA256 of payload
func SignPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
