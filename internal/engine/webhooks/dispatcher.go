package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clawqa/internal/platform/metrics"
	"clawqa/internal/platform/models"
	"clawqa/internal/workers"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// SubscriptionStore lists the webhooks a dispatch can reach.
type SubscriptionStore interface {
	ListActiveByOwner(ctx context.Context, ownerID string) ([]*models.Webhook, error)
}

type Dispatcher struct {
	subs     SubscriptionStore
	executor *Executor
	runner   *workers.Runner
	delays   []time.Duration
	now      func() time.Time
}

func NewDispatcher(subs SubscriptionStore, executor *Executor, runner *workers.Runner, retryDelays []time.Duration) *Dispatcher {
	if retryDelays == nil {
		retryDelays = DefaultRetryDelays
	}
	return &Dispatcher{
		subs:     subs,
		executor: executor,
		runner:   runner,
		delays:   retryDelays,
		now:      time.Now,
	}
}

// Dispatch notifies every active webhook of ownerID subscribed to eventType.
// It returns immediately; delivery and its failures never reach the caller.
func (d *Dispatcher) Dispatch(eventType string, data interface{}, ownerID string) {
	d.runner.Go("webhook.dispatch", func(ctx context.Context) error {
		return d.fanOut(ctx, eventType, data, ownerID)
	})
}

func (d *Dispatcher) fanOut(ctx context.Context, eventType string, data interface{}, ownerID string) error {
	webhooks, err := d.subs.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("listing webhooks of %s: %w", ownerID, err)
	}

	for _, webhook := range webhooks {
		webhook := webhook
		if !webhook.Subscribes(eventType) {
			continue
		}

		payload, err := json.Marshal(NewEvent(eventType, data, d.now()))
		if err != nil {
			return fmt.Errorf("encoding %s event: %w", eventType, err)
		}
		signature := Sign(webhook.Secret, payload)

		d.runner.Go("webhook.deliver", func(ctx context.Context) error {
			return d.deliver(ctx, webhook, eventType, payload, signature)
		})
	}
	return nil
}

var errAttemptFailed = errors.New("delivery attempt failed")

// deliver runs one logical delivery: the first attempt plus a retry after
// each failure until the schedule is exhausted.
func (d *Dispatcher) deliver(ctx context.Context, webhook *models.Webhook, eventType string, payload []byte, signature string) error {
	retryCount := 0
	attempt := func() error {
		record := d.executor.Attempt(ctx, webhook, eventType, payload, signature, retryCount)
		retryCount++
		if record.Success {
			return nil
		}
		if record.StatusCode != nil {
			return fmt.Errorf("%w: status %d", errAttemptFailed, *record.StatusCode)
		}
		return fmt.Errorf("%w: %s", errAttemptFailed, record.ResponseBody)
	}
	notify := func(err error, wait time.Duration) {
		metrics.RetriesScheduled.WithLabelValues(eventType).Inc()
		log.Debug().
			Str("webhook_id", webhook.ID).
			Str("event", eventType).
			Int("retry_count", retryCount).
			Dur("wait", wait).
			Msg("webhook delivery retry scheduled")
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(NewSchedule(d.delays), ctx), notify)
	if err != nil {
		log.Warn().
			Err(err).
			Str("webhook_id", webhook.ID).
			Str("event", eventType).
			Int("attempts", retryCount).
			Msg("webhook delivery abandoned")
	}
	return nil
}
