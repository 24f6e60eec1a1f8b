package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"clawqa/internal/platform/models"

	"github.com/google/uuid"
)

type EscalationRuleRepository struct {
	db *sql.DB
}

func NewEscalationRuleRepository(db *sql.DB) *EscalationRuleRepository {
	return &EscalationRuleRepository{db: db}
}

func (r *EscalationRuleRepository) Create(ctx context.Context, rule *models.EscalationRule) error {
	if rule.ID == "" {
		rule.ID = "esc_" + uuid.New().String()
	}
	rule.CreatedAt = time.Now().Unix()

	conditionJSON, err := json.Marshal(rule.Condition)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO escalation_rules (id, project_id, condition, action, target_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, rule.ID, rule.ProjectID, string(conditionJSON), rule.Action, rule.TargetURL, rule.CreatedAt)
	return err
}

func (r *EscalationRuleRepository) ListByProject(ctx context.Context, projectID string) ([]*models.EscalationRule, error) {
	return r.list(ctx, `
		SELECT id, project_id, condition, action, target_url, created_at
		FROM escalation_rules WHERE project_id = ? ORDER BY created_at DESC
	`, projectID)
}

func (r *EscalationRuleRepository) List(ctx context.Context) ([]*models.EscalationRule, error) {
	return r.list(ctx, `
		SELECT id, project_id, condition, action, target_url, created_at
		FROM escalation_rules ORDER BY created_at DESC
	`)
}

func (r *EscalationRuleRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.EscalationRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []*models.EscalationRule{}
	for rows.Next() {
		var rule models.EscalationRule
		var conditionStr string
		if err := rows.Scan(&rule.ID, &rule.ProjectID, &conditionStr, &rule.Action, &rule.TargetURL, &rule.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(conditionStr), &rule.Condition); err != nil {
			return nil, fmt.Errorf("decoding condition of rule %s: %w", rule.ID, err)
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}
