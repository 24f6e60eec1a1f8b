package models

import "slices"

const (
	EventBugReportCreated   = "bug_report.created"
	EventTestCycleCompleted = "test_cycle.completed"
	EventTestPing           = "test.ping"
)

// Webhook is a registered delivery target. Secret is written once at
// creation and never serialized afterwards.
type Webhook struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"` // JSON array in DB
	Secret    string   `json:"-"`
	Active    bool     `json:"active"`
	CreatedAt int64    `json:"created_at"`
}

// Subscribes reports whether event is in the webhook's filter.
func (w *Webhook) Subscribes(event string) bool {
	return slices.Contains(w.Events, event)
}

// WebhookDelivery is one HTTP attempt. Rows are append-only.
type WebhookDelivery struct {
	ID           string `json:"id"`
	WebhookID    string `json:"webhook_id"`
	Event        string `json:"event"`
	Payload      string `json:"payload"`
	StatusCode   *int   `json:"status_code"`
	ResponseBody string `json:"response_body"`
	Success      bool   `json:"success"`
	DurationMs   int64  `json:"duration_ms"`
	RetryCount   int    `json:"retry_count"`
	DeliveredAt  int64  `json:"delivered_at"` // unix milliseconds
}

// WebhookEvent is the body posted to subscribers.
type WebhookEvent struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}
