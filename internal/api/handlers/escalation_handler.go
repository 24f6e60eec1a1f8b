package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"clawqa/internal/pkg/errors"
	"clawqa/internal/pkg/validator"
	"clawqa/internal/platform/models"
	"clawqa/internal/platform/repositories"
)

type EscalationRuleStore interface {
	Create(ctx context.Context, rule *models.EscalationRule) error
	List(ctx context.Context) ([]*models.EscalationRule, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.EscalationRule, error)
}

type ProjectLookup interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
}

type EscalationRuleHandler struct {
	rules    EscalationRuleStore
	projects ProjectLookup
}

func NewEscalationRuleHandler(rules EscalationRuleStore, projects ProjectLookup) *EscalationRuleHandler {
	return &EscalationRuleHandler{rules: rules, projects: projects}
}

func (h *EscalationRuleHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		rules []*models.EscalationRule
		err   error
	)
	if projectID := r.URL.Query().Get("project_id"); projectID != "" {
		rules, err = h.rules.ListByProject(r.Context(), projectID)
	} else {
		rules, err = h.rules.List(r.Context())
	}
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list escalation rules", nil)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *EscalationRuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string                      `json:"project_id"`
		Condition *models.EscalationCondition `json:"condition"`
		Action    string                      `json:"action"`
		TargetURL string                      `json:"target_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.ProjectID == "" || req.Condition == nil || req.Action == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Missing required fields: project_id, condition, action", nil)
		return
	}
	if !models.IsEscalationAction(req.Action) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "action must be notify, escalate, or block-release", nil)
		return
	}
	if req.TargetURL != "" {
		if err := validator.HTTPURL("target_url", req.TargetURL); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		}
	}

	if _, err := h.projects.GetByID(r.Context(), req.ProjectID); err != nil {
		if stderrors.Is(err, repositories.ErrNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Project not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load project", nil)
		return
	}

	rule := &models.EscalationRule{
		ProjectID: req.ProjectID,
		Condition: *req.Condition,
		Action:    req.Action,
		TargetURL: req.TargetURL,
	}
	if err := h.rules.Create(r.Context(), rule); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create escalation rule", nil)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}
