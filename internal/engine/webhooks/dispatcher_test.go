package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clawqa/internal/platform/models"
	"clawqa/internal/workers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSubscriptions struct {
	webhooks []*models.Webhook
	err      error
}

func (s *staticSubscriptions) ListActiveByOwner(ctx context.Context, ownerID string) ([]*models.Webhook, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.Webhook
	for _, w := range s.webhooks {
		if w.UserID == ownerID && w.Active {
			out = append(out, w)
		}
	}
	return out, nil
}

type recordingReceiver struct {
	mu     sync.Mutex
	bodies [][]byte
	sigs   []string
}

func (rr *recordingReceiver) handler(status func(n int) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rr.mu.Lock()
		rr.bodies = append(rr.bodies, body)
		rr.sigs = append(rr.sigs, r.Header.Get("X-ClawQA-Signature"))
		n := len(rr.bodies)
		rr.mu.Unlock()
		w.WriteHeader(status(n))
	}
}

func (rr *recordingReceiver) count() int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return len(rr.bodies)
}

func always(code int) func(int) int {
	return func(int) int { return code }
}

func newTestDispatcher(subs SubscriptionStore, store DeliveryStore) (*Dispatcher, *workers.Runner) {
	runner := workers.NewRunner()
	cfg := testWebhooksConfig()
	return NewDispatcher(subs, NewExecutor(cfg, store), runner, cfg.RetryDelays), runner
}

func TestDispatcher_DeliversSignedEvent(t *testing.T) {
	rr := &recordingReceiver{}
	srv := httptest.NewServer(rr.handler(always(http.StatusOK)))
	defer srv.Close()

	subs := &staticSubscriptions{webhooks: []*models.Webhook{
		{ID: "wh_1", UserID: "usr_1", URL: srv.URL, Events: []string{models.EventBugReportCreated}, Secret: "k1", Active: true},
	}}
	store := &memoryDeliveryStore{}
	d, runner := newTestDispatcher(subs, store)

	d.Dispatch(models.EventBugReportCreated, map[string]string{"id": "bug_1"}, "usr_1")
	runner.Wait()

	require.Equal(t, 1, rr.count())
	assert.True(t, Verify("k1", rr.bodies[0], rr.sigs[0]))

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.bodies[0], &event))
	assert.Equal(t, models.EventBugReportCreated, event["event"])
	assert.Equal(t, map[string]interface{}{"id": "bug_1"}, event["data"])
	_, err := time.Parse("2006-01-02T15:04:05.000Z", event["timestamp"].(string))
	assert.NoError(t, err)

	deliveries := store.all()
	require.Len(t, deliveries, 1)
	assert.True(t, deliveries[0].Success)
	assert.Equal(t, string(rr.bodies[0]), deliveries[0].Payload)
}

func TestDispatcher_FiltersSubscriptions(t *testing.T) {
	rr := &recordingReceiver{}
	srv := httptest.NewServer(rr.handler(always(http.StatusOK)))
	defer srv.Close()

	subs := &staticSubscriptions{webhooks: []*models.Webhook{
		{ID: "wh_match", UserID: "usr_1", URL: srv.URL, Events: []string{models.EventTestCycleCompleted, models.EventBugReportCreated}, Secret: "a", Active: true},
		{ID: "wh_other_event", UserID: "usr_1", URL: srv.URL, Events: []string{models.EventTestCycleCompleted}, Secret: "b", Active: true},
		{ID: "wh_inactive", UserID: "usr_1", URL: srv.URL, Events: []string{models.EventBugReportCreated}, Secret: "c", Active: false},
		{ID: "wh_other_owner", UserID: "usr_2", URL: srv.URL, Events: []string{models.EventBugReportCreated}, Secret: "d", Active: true},
		{ID: "wh_empty", UserID: "usr_1", URL: srv.URL, Events: []string{}, Secret: "e", Active: true},
	}}
	store := &memoryDeliveryStore{}
	d, runner := newTestDispatcher(subs, store)

	d.Dispatch(models.EventBugReportCreated, nil, "usr_1")
	runner.Wait()

	deliveries := store.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "wh_match", deliveries[0].WebhookID)
	assert.Equal(t, 1, rr.count())
}

func TestDispatcher_RetriesUntilExhausted(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadRequest} {
		rr := &recordingReceiver{}
		srv := httptest.NewServer(rr.handler(always(status)))

		subs := &staticSubscriptions{webhooks: []*models.Webhook{
			{ID: "wh_1", UserID: "usr_1", URL: srv.URL, Events: []string{models.EventBugReportCreated}, Secret: "k", Active: true},
		}}
		store := &memoryDeliveryStore{}
		d, runner := newTestDispatcher(subs, store)

		d.Dispatch(models.EventBugReportCreated, nil, "usr_1")
		runner.Wait()
		srv.Close()

		deliveries := store.all()
		require.Len(t, deliveries, 4, "status %d", status)
		for i, delivery := range deliveries {
			assert.Equal(t, i, delivery.RetryCount)
			assert.False(t, delivery.Success)
			assert.Equal(t, deliveries[0].Payload, delivery.Payload, "retries resend the same bytes")
		}
		assert.Equal(t, 4, rr.count())
		for _, sig := range rr.sigs {
			assert.Equal(t, rr.sigs[0], sig)
		}
	}
}

func TestDispatcher_StopsRetryingOnSuccess(t *testing.T) {
	rr := &recordingReceiver{}
	srv := httptest.NewServer(rr.handler(func(n int) int {
		if n == 1 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	}))
	defer srv.Close()

	subs := &staticSubscriptions{webhooks: []*models.Webhook{
		{ID: "wh_1", UserID: "usr_1", URL: srv.URL, Events: []string{models.EventBugReportCreated}, Secret: "k", Active: true},
	}}
	store := &memoryDeliveryStore{}
	d, runner := newTestDispatcher(subs, store)

	d.Dispatch(models.EventBugReportCreated, nil, "usr_1")
	runner.Wait()

	deliveries := store.all()
	require.Len(t, deliveries, 2)
	assert.False(t, deliveries[0].Success)
	assert.Equal(t, 0, deliveries[0].RetryCount)
	assert.True(t, deliveries[1].Success)
	assert.Equal(t, 1, deliveries[1].RetryCount)
}

func TestDispatcher_DoesNotDeduplicate(t *testing.T) {
	rr := &recordingReceiver{}
	srv := httptest.NewServer(rr.handler(always(http.StatusOK)))
	defer srv.Close()

	subs := &staticSubscriptions{webhooks: []*models.Webhook{
		{ID: "wh_1", UserID: "usr_1", URL: srv.URL, Events: []string{models.EventBugReportCreated}, Secret: "k", Active: true},
	}}
	store := &memoryDeliveryStore{}
	d, runner := newTestDispatcher(subs, store)

	d.Dispatch(models.EventBugReportCreated, map[string]string{"id": "bug_1"}, "usr_1")
	d.Dispatch(models.EventBugReportCreated, map[string]string{"id": "bug_1"}, "usr_1")
	runner.Wait()

	assert.Len(t, store.all(), 2)
	assert.Equal(t, 2, rr.count())
}

func TestDispatcher_IndependentChains(t *testing.T) {
	var slowHits atomic.Int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slowHits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer slow.Close()
	rr := &recordingReceiver{}
	fast := httptest.NewServer(rr.handler(always(http.StatusOK)))
	defer fast.Close()

	subs := &staticSubscriptions{webhooks: []*models.Webhook{
		{ID: "wh_fail", UserID: "usr_1", URL: slow.URL, Events: []string{models.EventBugReportCreated}, Secret: "a", Active: true},
		{ID: "wh_ok", UserID: "usr_1", URL: fast.URL, Events: []string{models.EventBugReportCreated}, Secret: "b", Active: true},
	}}
	store := &memoryDeliveryStore{}
	d, runner := newTestDispatcher(subs, store)

	d.Dispatch(models.EventBugReportCreated, nil, "usr_1")
	runner.Wait()

	perWebhook := map[string]int{}
	for _, delivery := range store.all() {
		perWebhook[delivery.WebhookID]++
	}
	assert.Equal(t, map[string]int{"wh_fail": 4, "wh_ok": 1}, perWebhook)
	assert.Equal(t, int32(4), slowHits.Load())
}

func TestDispatcher_StoreErrorIsSwallowed(t *testing.T) {
	d, runner := newTestDispatcher(&staticSubscriptions{err: assert.AnError}, &memoryDeliveryStore{})

	assert.NotPanics(t, func() {
		d.Dispatch(models.EventBugReportCreated, nil, "usr_1")
	})
	runner.Wait()
}

func TestDispatcher_ShutdownStopsPendingRetries(t *testing.T) {
	rr := &recordingReceiver{}
	srv := httptest.NewServer(rr.handler(always(http.StatusInternalServerError)))
	defer srv.Close()

	subs := &staticSubscriptions{webhooks: []*models.Webhook{
		{ID: "wh_1", UserID: "usr_1", URL: srv.URL, Events: []string{models.EventBugReportCreated}, Secret: "k", Active: true},
	}}
	store := &memoryDeliveryStore{}
	runner := workers.NewRunner()
	d := NewDispatcher(subs, NewExecutor(testWebhooksConfig(), store), runner, []time.Duration{time.Hour})

	d.Dispatch(models.EventBugReportCreated, nil, "usr_1")
	require.Eventually(t, func() bool { return len(store.all()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.Shutdown(ctx))
	assert.Len(t, store.all(), 1)
}
