package models

import (
	"slices"
	"strings"
)

const (
	ActionNotify       = "notify"
	ActionEscalate     = "escalate"
	ActionBlockRelease = "block-release"
)

var EscalationActions = []string{ActionNotify, ActionEscalate, ActionBlockRelease}

func IsEscalationAction(action string) bool {
	return slices.Contains(EscalationActions, action)
}

type EscalationRule struct {
	ID        string              `json:"id"`
	ProjectID string              `json:"project_id"`
	Condition EscalationCondition `json:"condition"` // JSON in DB
	Action    string              `json:"action"`
	TargetURL string              `json:"target_url"`
	CreatedAt int64               `json:"created_at"`
}

// EscalationCondition fields are optional. An empty string means the field
// is absent and does not constrain the match.
type EscalationCondition struct {
	Severity string `json:"severity,omitempty"`
	Device   string `json:"device,omitempty"`
	Status   string `json:"status,omitempty"`
}

// EscalationIssue is the slice of a bug report the rule engine sees.
type EscalationIssue struct {
	ID         string `json:"id"`
	CycleID    string `json:"cycle_id"`
	Severity   string `json:"severity"`
	DeviceInfo string `json:"device_info"`
	Status     string `json:"status"`
}

func (b *BugReport) EscalationIssue() EscalationIssue {
	return EscalationIssue{
		ID:         b.ID,
		CycleID:    b.CycleID,
		Severity:   b.Severity,
		DeviceInfo: b.DeviceInfo,
		Status:     b.Status,
	}
}

// Matches reports whether every present condition field agrees with the
// issue. Device is a case-insensitive substring match on DeviceInfo.
func (c EscalationCondition) Matches(issue EscalationIssue) bool {
	if c.Severity != "" && c.Severity != issue.Severity {
		return false
	}
	if c.Device != "" && !strings.Contains(strings.ToLower(issue.DeviceInfo), strings.ToLower(c.Device)) {
		return false
	}
	if c.Status != "" && c.Status != issue.Status {
		return false
	}
	return true
}
