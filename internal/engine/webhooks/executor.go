package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"clawqa/internal/platform/config"
	"clawqa/internal/platform/metrics"
	"clawqa/internal/platform/models"

	"github.com/rs/zerolog/log"
)

const (
	connectionFailed = "Connection failed"
	pingSecret       = "test"
)

// DeliveryStore persists delivery records.
type DeliveryStore interface {
	Create(ctx context.Context, d *models.WebhookDelivery) error
}

// Executor performs single signed POSTs and records their outcome.
type Executor struct {
	client          *http.Client
	store           DeliveryStore
	signatureHeader string
	maxResponseBody int
	now             func() time.Time
}

func NewExecutor(cfg config.WebhooksConfig, store DeliveryStore) *Executor {
	defaults := config.Default().Webhooks
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = defaults.SignatureHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = defaults.MaxResponseBody
	}
	return &Executor{
		client:          &http.Client{Timeout: cfg.Timeout},
		store:           store,
		signatureHeader: cfg.SignatureHeader,
		maxResponseBody: cfg.MaxResponseBody,
		now:             time.Now,
	}
}

// Attempt posts payload to the webhook URL once. Exactly one delivery record
// is stored per call; the outcome is returned as data and a storage failure is
// only logged.
func (e *Executor) Attempt(ctx context.Context, webhook *models.Webhook, event string, payload []byte, signature string, retryCount int) *models.WebhookDelivery {
	start := e.now()
	statusCode, body, err := e.post(ctx, webhook.URL, payload, signature)
	elapsed := e.now().Sub(start)

	d := &models.WebhookDelivery{
		WebhookID:   webhook.ID,
		Event:       event,
		Payload:     string(payload),
		DurationMs:  elapsed.Milliseconds(),
		RetryCount:  retryCount,
		DeliveredAt: e.now().UnixMilli(),
	}
	if err != nil {
		d.ResponseBody = err.Error()
		if d.ResponseBody == "" {
			d.ResponseBody = connectionFailed
		}
	} else {
		d.StatusCode = &statusCode
		d.ResponseBody = body
		d.Success = statusCode >= 200 && statusCode < 300
	}

	metrics.DeliveryAttempts.WithLabelValues(event, metrics.Outcome(d.Success)).Inc()
	metrics.DeliveryDuration.WithLabelValues(event).Observe(elapsed.Seconds())

	logEvent := log.Debug()
	if !d.Success {
		logEvent = log.Warn()
	}
	logEvent.
		Str("webhook_id", webhook.ID).
		Str("event", event).
		Int("retry_count", retryCount).
		Interface("status_code", d.StatusCode).
		Int64("duration_ms", d.DurationMs).
		Bool("success", d.Success).
		Msg("webhook delivery attempt")

	// the record outlives a cancelled dispatch
	if err := e.store.Create(context.WithoutCancel(ctx), d); err != nil {
		log.Error().Err(err).Str("webhook_id", webhook.ID).Str("event", event).Msg("failed to record webhook delivery")
	}
	return d
}

type PingResult struct {
	Success    bool `json:"success"`
	StatusCode int  `json:"status_code"`
}

// Ping sends one signed test.ping event to url. Nothing is recorded and
// nothing is retried; a transport failure is returned as an error.
func (e *Executor) Ping(ctx context.Context, url, secret string) (*PingResult, error) {
	if secret == "" {
		secret = pingSecret
	}
	payload, err := json.Marshal(NewEvent(models.EventTestPing, map[string]string{"message": "ClawQA webhook test"}, e.now()))
	if err != nil {
		return nil, err
	}

	statusCode, _, err := e.post(ctx, url, payload, Sign(secret, payload))
	if err != nil {
		return nil, err
	}
	return &PingResult{Success: statusCode >= 200 && statusCode < 300, StatusCode: statusCode}, nil
}

func (e *Executor) post(ctx context.Context, url string, payload []byte, signature string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(e.signatureHeader, SignatureHeaderValue(signature))

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	// a body read error keeps whatever was read
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, int64(e.maxResponseBody)*utf8.UTFMax))
	return resp.StatusCode, truncate(string(raw), e.maxResponseBody), nil
}

// NewEvent builds the envelope posted to subscribers. The timestamp is
// ISO-8601 UTC with millisecond precision.
func NewEvent(eventType string, data interface{}, at time.Time) models.WebhookEvent {
	return models.WebhookEvent{
		Event:     eventType,
		Data:      data,
		Timestamp: at.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
