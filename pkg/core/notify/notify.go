// Package notify sends best-effort webhook notifications. Sends are
// fire-and-forget with respect to turn processing: delivery is retried with
// bounded backoff inside Notify, but an exhausted send is only logged by the
// caller and never fails the enclosing operation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultRetryAttempts = 2
	defaultRetryBase     = 200 * time.Millisecond
)

// Notifier is the notification collaborator contract.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any) error
}

type envelope struct {
	Event   string    `json:"event"`
	SentAt  time.Time `json:"sent_at"`
	Payload any       `json:"payload,omitempty"`
}

// Webhook posts JSON event envelopes to a fixed URL.
type Webhook struct {
	url        string
	httpClient *http.Client
	attempts   uint64
	base       time.Duration
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string, httpClient *http.Client) *Webhook {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{
		url:        url,
		httpClient: httpClient,
		attempts:   defaultRetryAttempts,
		base:       defaultRetryBase,
	}
}

// Notify posts one event, retrying transport failures and 5xx responses
// with bounded fibonacci backoff. Client errors (4xx) are not retried: the
// envelope will not become acceptable on replay.
func (w *Webhook) Notify(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal(envelope{Event: event, SentAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", event, err)
	}

	backoff := retry.WithMaxRetries(w.attempts, retry.NewFibonacci(w.base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := w.post(ctx, event, body)
		if err == nil {
			return nil
		}
		var status *statusError
		if errors.As(err, &status) && status.code < 500 {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (w *Webhook) post(ctx context.Context, event string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification %s: %w", event, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 300 {
		return &statusError{event: event, code: resp.StatusCode}
	}
	return nil
}

type statusError struct {
	event string
	code  int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("notification %s: webhook returned %d", e.event, e.code)
}

// Noop is a notifier that drops every event.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, string, any) error { return nil }
