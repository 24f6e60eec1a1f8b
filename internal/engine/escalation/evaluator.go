package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"clawqa/internal/platform/metrics"
	"clawqa/internal/platform/models"
	"clawqa/internal/platform/repositories"
	"clawqa/internal/workers"

	"github.com/rs/zerolog/log"
)

const (
	EventTriggered = "escalation.triggered"
	EventPremium   = "escalation.premium"
)

type CycleStore interface {
	GetProjectID(ctx context.Context, cycleID string) (string, error)
}

type RuleStore interface {
	ListByProject(ctx context.Context, projectID string) ([]*models.EscalationRule, error)
}

type IssueStore interface {
	SetReleaseBlocker(ctx context.Context, id string, blocker bool) error
}

// Evaluator applies a project's escalation rules to new bug reports.
type Evaluator struct {
	cycles CycleStore
	rules  RuleStore
	issues IssueStore
	runner *workers.Runner
	client *http.Client
}

func NewEvaluator(cycles CycleStore, rules RuleStore, issues IssueStore, runner *workers.Runner, timeout time.Duration) *Evaluator {
	return &Evaluator{
		cycles: cycles,
		rules:  rules,
		issues: issues,
		runner: runner,
		client: &http.Client{Timeout: timeout},
	}
}

type escalationPayload struct {
	Event string                 `json:"event"`
	Bug   models.EscalationIssue `json:"bug"`
}

// Evaluate fires the action of every rule whose condition matches issue.
// Rules are independent: all matches fire, in listing order. An issue whose
// cycle no longer exists is ignored.
func (e *Evaluator) Evaluate(ctx context.Context, issue models.EscalationIssue) error {
	projectID, err := e.cycles.GetProjectID(ctx, issue.CycleID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("resolving project of cycle %s: %w", issue.CycleID, err)
	}

	rules, err := e.rules.ListByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("listing escalation rules of %s: %w", projectID, err)
	}

	var errs []error
	for _, rule := range rules {
		if !rule.Condition.Matches(issue) {
			continue
		}
		if err := e.execute(ctx, rule, issue); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Evaluator) execute(ctx context.Context, rule *models.EscalationRule, issue models.EscalationIssue) error {
	switch rule.Action {
	case models.ActionNotify:
		if rule.TargetURL == "" {
			return nil
		}
		e.postDetached(rule.TargetURL, escalationPayload{Event: EventTriggered, Bug: issue})
	case models.ActionEscalate:
		if rule.TargetURL == "" {
			return nil
		}
		e.postDetached(rule.TargetURL, escalationPayload{Event: EventPremium, Bug: issue})
	case models.ActionBlockRelease:
		if err := e.issues.SetReleaseBlocker(ctx, issue.ID, true); err != nil {
			return err
		}
	default:
		log.Warn().Str("rule_id", rule.ID).Str("action", rule.Action).Msg("ignoring unknown escalation action")
		return nil
	}

	metrics.EscalationActions.WithLabelValues(rule.Action).Inc()
	log.Info().Str("rule_id", rule.ID).Str("action", rule.Action).Str("bug_id", issue.ID).Msg("escalation rule fired")
	return nil
}

// postDetached sends payload to url in the background. Failures are only
// logged at debug level.
func (e *Evaluator) postDetached(url string, payload escalationPayload) {
	e.runner.Go("escalation.post", func(ctx context.Context) error {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			log.Debug().Err(err).Str("url", url).Msg("escalation target request invalid")
			return nil
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			log.Debug().Err(err).Str("url", url).Str("event", payload.Event).Msg("escalation target unreachable")
			return nil
		}
		resp.Body.Close()
		return nil
	})
}
