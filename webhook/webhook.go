package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/mapscout/config"
)

// SignatureHeader carries "sha256=<hex>" of the HMAC-SHA256 of the body.
const SignatureHeader = "X-Mapscout-Signature"

// Event types.
const (
	EventJobCompleted   = "job.completed"
	EventJobFailed      = "job.failed"
	EventBatchCompleted = "batch.completed"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Sender delivers events. The zero value delivers unsigned events with a
// 10s timeout and no retries.
type Sender struct {
	Secret  string
	Timeout time.Duration
	Client  *http.Client

	// Retries are the waits before each retry after the first attempt.
	Retries []time.Duration
}

// NewSender returns a Sender configured from cfg that retries after 1s,
// 5s and 30s.
func NewSender(cfg config.WebhookConfig) *Sender {
	return &Sender{
		Secret:  cfg.Secret,
		Timeout: cfg.Timeout,
		Client:  &http.Client{},
		Retries: []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if the secret is non-empty.
func (s *Sender) Deliver(ctx context.Context, url string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mapscout-Webhook/1.0")
	if s.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(s.Secret, body))
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverWithRetry delivers event, retrying after each wait in s.Retries.
// It returns the last error once every attempt has failed.
func (s *Sender) DeliverWithRetry(ctx context.Context, url string, event *Event) error {
	waits := append([]time.Duration{0}, s.Retries...)
	var err error
	for attempt, wait := range waits {
		if wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err = s.Deliver(ctx, url, event)
		if err == nil {
			slog.Info("webhook delivered",
				"url", url,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
			)
			return nil
		}
		slog.Warn("webhook delivery failed",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"url", url,
		"event", event.Type,
		"job_id", event.JobID,
	)
	return err
}

// DeliverAsync runs DeliverWithRetry in the background.
func (s *Sender) DeliverAsync(url string, event *Event) {
	go func() {
		_ = s.DeliverWithRetry(context.Background(), url, event)
	}()
}
