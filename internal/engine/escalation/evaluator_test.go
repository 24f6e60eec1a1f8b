package escalation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clawqa/internal/platform/models"
	"clawqa/internal/platform/repositories"
	"clawqa/internal/workers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStores struct {
	mu       sync.Mutex
	cycles   map[string]string
	rules    map[string][]*models.EscalationRule
	blockers []string
	cycleErr error
}

func (f *fakeStores) GetProjectID(ctx context.Context, cycleID string) (string, error) {
	if f.cycleErr != nil {
		return "", f.cycleErr
	}
	p, ok := f.cycles[cycleID]
	if !ok {
		return "", repositories.ErrNotFound
	}
	return p, nil
}

func (f *fakeStores) ListByProject(ctx context.Context, projectID string) ([]*models.EscalationRule, error) {
	return f.rules[projectID], nil
}

func (f *fakeStores) SetReleaseBlocker(ctx context.Context, id string, blocker bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockers = append(f.blockers, id)
	return nil
}

type capture struct {
	mu       sync.Mutex
	payloads []escalationPayload
}

func (c *capture) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p escalationPayload
		assert.NoError(t, json.Unmarshal(body, &p))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.mu.Unlock()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *capture) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, p := range c.payloads {
		out = append(out, p.Event)
	}
	return out
}

func newEvaluator(stores *fakeStores) (*Evaluator, *workers.Runner) {
	runner := workers.NewRunner()
	return NewEvaluator(stores, stores, stores, runner, time.Second), runner
}

func iosCritical() models.EscalationIssue {
	return models.EscalationIssue{
		ID:         "bug_1",
		CycleID:    "cyc_1",
		Severity:   "critical",
		DeviceInfo: `{"platform":"iOS 17"}`,
		Status:     "open",
	}
}

func TestEvaluate_Actions(t *testing.T) {
	c := &capture{}
	srv := c.server(t)

	stores := &fakeStores{
		cycles: map[string]string{"cyc_1": "prj_1"},
		rules: map[string][]*models.EscalationRule{"prj_1": {
			{ID: "r1", Condition: models.EscalationCondition{Severity: "critical"}, Action: models.ActionNotify, TargetURL: srv.URL},
			{ID: "r2", Condition: models.EscalationCondition{Device: "IOS"}, Action: models.ActionBlockRelease},
			{ID: "r3", Condition: models.EscalationCondition{}, Action: models.ActionEscalate, TargetURL: srv.URL},
			{ID: "r4", Condition: models.EscalationCondition{Severity: "minor"}, Action: models.ActionNotify, TargetURL: srv.URL},
		}},
	}
	e, runner := newEvaluator(stores)

	require.NoError(t, e.Evaluate(context.Background(), iosCritical()))
	runner.Wait()

	assert.ElementsMatch(t, []string{EventTriggered, EventPremium}, c.events())
	assert.Equal(t, []string{"bug_1"}, stores.blockers)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.payloads {
		assert.Equal(t, iosCritical(), p.Bug)
	}
}

func TestEvaluate_PartialConditions(t *testing.T) {
	tests := []struct {
		name      string
		condition models.EscalationCondition
		fires     bool
	}{
		{"empty matches all", models.EscalationCondition{}, true},
		{"severity only", models.EscalationCondition{Severity: "critical"}, true},
		{"severity mismatch", models.EscalationCondition{Severity: "major"}, false},
		{"device case-insensitive", models.EscalationCondition{Device: "ios"}, true},
		{"device absent", models.EscalationCondition{Device: "android"}, false},
		{"status mismatch", models.EscalationCondition{Status: "fixed"}, false},
		{"all fields", models.EscalationCondition{Severity: "critical", Device: "iOS 17", Status: "open"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := &fakeStores{
				cycles: map[string]string{"cyc_1": "prj_1"},
				rules: map[string][]*models.EscalationRule{"prj_1": {
					{ID: "r", Condition: tt.condition, Action: models.ActionBlockRelease},
				}},
			}
			e, runner := newEvaluator(stores)
			require.NoError(t, e.Evaluate(context.Background(), iosCritical()))
			runner.Wait()

			assert.Equal(t, tt.fires, len(stores.blockers) == 1)
		})
	}
}

func TestEvaluate_NoTargetSkipsPost(t *testing.T) {
	stores := &fakeStores{
		cycles: map[string]string{"cyc_1": "prj_1"},
		rules: map[string][]*models.EscalationRule{"prj_1": {
			{ID: "r1", Action: models.ActionNotify},
			{ID: "r2", Action: models.ActionEscalate},
			{ID: "r3", Action: "page-everyone"},
		}},
	}
	e, runner := newEvaluator(stores)

	require.NoError(t, e.Evaluate(context.Background(), iosCritical()))
	runner.Wait()
	assert.Empty(t, stores.blockers)
}

func TestEvaluate_MissingCycleIsNoop(t *testing.T) {
	stores := &fakeStores{cycles: map[string]string{}}
	e, _ := newEvaluator(stores)

	assert.NoError(t, e.Evaluate(context.Background(), iosCritical()))
}

func TestEvaluate_StoreError(t *testing.T) {
	stores := &fakeStores{cycleErr: assert.AnError}
	e, _ := newEvaluator(stores)

	assert.ErrorIs(t, e.Evaluate(context.Background(), iosCritical()), assert.AnError)
}

func TestEvaluate_UnreachableTargetIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	stores := &fakeStores{
		cycles: map[string]string{"cyc_1": "prj_1"},
		rules: map[string][]*models.EscalationRule{"prj_1": {
			{ID: "r1", Action: models.ActionNotify, TargetURL: url},
		}},
	}
	e, runner := newEvaluator(stores)

	assert.NoError(t, e.Evaluate(context.Background(), iosCritical()))
	runner.Wait()
}
