package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	DeliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clawqa_webhook_delivery_attempts_total",
		Help: "Webhook delivery attempts by event and outcome.",
	}, []string{"event", "outcome"})

	DeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clawqa_webhook_delivery_duration_seconds",
		Help:    "Wall-clock duration of webhook delivery attempts.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})

	RetriesScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clawqa_webhook_retries_scheduled_total",
		Help: "Webhook retries scheduled after a failed attempt.",
	}, []string{"event"})

	EscalationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clawqa_escalation_actions_total",
		Help: "Escalation rule actions fired.",
	}, []string{"action"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clawqa_rate_limited_requests_total",
		Help: "API requests rejected by the rate limiter.",
	})
)

func Outcome(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
