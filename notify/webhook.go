// Package notify announces finished encodes to an external webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/openclaw/audioqr/store"
)

// Payload is the JSON body sent to the configured webhook URL for each
// finished encode.
type Payload struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	Digest        string `json:"digest"`
	PayloadBytes  int    `json:"payload_bytes"`
	Truncated     bool   `json:"truncated"`
	EncodedLength int    `json:"encoded_length"`
	Version       int    `json:"version"`
	ImageSize     int    `json:"image_size"`
	OutputPath    string `json:"output_path,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// FromRecord builds the webhook payload for a stored encode.
func FromRecord(rec *store.Record) *Payload {
	return &Payload{
		ID:            rec.ID,
		Source:        rec.Source,
		Digest:        rec.Digest,
		PayloadBytes:  rec.PayloadBytes,
		Truncated:     rec.Truncated,
		EncodedLength: rec.EncodedLength,
		Version:       rec.Version,
		ImageSize:     rec.ImageSize,
		OutputPath:    rec.OutputPath,
		Timestamp:     rec.CreatedAt,
	}
}

// WebhookSender delivers payloads to an external HTTP endpoint, dropping
// repeats of the same digest.
type WebhookSender struct {
	url    string
	seen   map[string]time.Time // digest -> delivery time
	mu     sync.Mutex
	client *http.Client
	log    *slog.Logger
}

// seenTTL is the time-to-live for entries in the deduplication map.
const seenTTL = 5 * time.Minute

// NewWebhookSender creates a WebhookSender ready to POST payloads to url. If
// url is empty the sender is a no-op.
func NewWebhookSender(url string, log *slog.Logger) *WebhookSender {
	return &WebhookSender{
		url:  url,
		seen: make(map[string]time.Time),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Send delivers payload to the configured endpoint. It returns nil without
// sending when no URL is configured or the digest was delivered recently. A
// digest whose delivery fails or gets a non-2xx answer may be sent again.
func (w *WebhookSender) Send(ctx context.Context, payload *Payload) error {
	if w.url == "" {
		return nil
	}

	// Reserve the digest so concurrent sends of the same encode POST once.
	w.mu.Lock()
	w.cleanupSeenLocked()
	if _, ok := w.seen[payload.Digest]; ok {
		w.mu.Unlock()
		w.log.Debug("webhook skipping duplicate encode", "digest", payload.Digest)
		return nil
	}
	w.seen[payload.Digest] = time.Now()
	w.mu.Unlock()

	delivered, err := w.post(ctx, payload)
	if !delivered {
		w.mu.Lock()
		delete(w.seen, payload.Digest)
		w.mu.Unlock()
	}
	return err
}

// post sends one payload and reports whether the endpoint accepted it.
func (w *WebhookSender) post(ctx context.Context, payload *Payload) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("webhook marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Error("webhook delivery failed", "error", err, "id", payload.ID)
		return false, fmt.Errorf("webhook POST: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.log.Warn("webhook non-2xx response", "status", resp.StatusCode, "id", payload.ID)
		return false, nil
	}
	w.log.Info("webhook delivered", "status", resp.StatusCode, "id", payload.ID)
	return true, nil
}

// cleanupSeenLocked removes stale entries from the seen map. The caller MUST
// hold w.mu.
func (w *WebhookSender) cleanupSeenLocked() {
	cutoff := time.Now().Add(-seenTTL)
	for d, t := range w.seen {
		if t.Before(cutoff) {
			delete(w.seen, d)
		}
	}
}
