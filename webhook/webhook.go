// Package webhook notifies an HTTP endpoint when a scrape run finishes.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/models"
)

// EventRunCompleted is sent once per run, after any sink upload.
const EventRunCompleted = "run.completed"

// SignatureHeader carries "sha256=<hex HMAC of the body>" when a secret is
// configured.
const SignatureHeader = "X-Blotter-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// RunSummary is the data of a run.completed event.
type RunSummary struct {
	Dates    []string               `json:"dates"`
	Records  int                    `json:"records"`
	Failures []models.FailureDetail `json:"failures"`
	Uploaded bool                   `json:"uploaded"`
}

// RunCompleted builds the event for a finished batch.
func RunCompleted(runID string, report *models.BatchReport, uploaded bool) *Event {
	summary := RunSummary{
		Dates:    []string{},
		Records:  len(report.Records()),
		Failures: models.FailureDetails(report.Failures),
		Uploaded: uploaded,
	}
	for _, r := range report.Results {
		summary.Dates = append(summary.Dates, r.Date)
	}
	return &Event{
		Type:      EventRunCompleted,
		RunID:     runID,
		Timestamp: time.Now().Unix(),
		Data:      summary,
	}
}

// NewRunID returns a short random identifier for a run.
func NewRunID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "run-" + hex.EncodeToString(b)
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier delivers events to one endpoint. A Notifier with an empty URL
// drops every event.
type Notifier struct {
	url    string
	secret string
	client *http.Client

	// delays are the waits before each attempt.
	delays []time.Duration

	wg sync.WaitGroup
}

// New creates a Notifier for cfg.
func New(cfg config.WebhookConfig) *Notifier {
	return &Notifier{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.url != "" }

// Deliver sends event once.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Blotter-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Send delivers event, retrying on the fixed delay table until it succeeds,
// the table is exhausted or ctx is done.
func (n *Notifier) Send(ctx context.Context, event *Event) error {
	if !n.Enabled() {
		return nil
	}
	var err error
	for attempt, delay := range n.delays {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		actx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = n.Deliver(actx, event)
		cancel()
		if err == nil {
			slog.Info("webhook delivered",
				"url", n.url,
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
			)
			return nil
		}
		slog.Warn("webhook delivery failed",
			"url", n.url,
			"event", event.Type,
			"run_id", event.RunID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"url", n.url,
		"event", event.Type,
		"run_id", event.RunID,
	)
	return err
}

// SendAsync runs Send in the background. Wait blocks until every
// background delivery has finished.
func (n *Notifier) SendAsync(event *Event) {
	if !n.Enabled() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		_ = n.Send(context.Background(), event)
	}()
}

// Wait blocks until background deliveries are done.
func (n *Notifier) Wait() { n.wg.Wait() }
