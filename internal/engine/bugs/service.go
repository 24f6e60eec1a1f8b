package bugs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"clawqa/internal/platform/models"
	"clawqa/internal/workers"
)

var ErrForbidden = errors.New("caller does not own the project")

type BugStore interface {
	Create(ctx context.Context, bug *models.BugReport) error
}

type CycleStore interface {
	GetByID(ctx context.Context, id string) (*models.TestCycle, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, issue models.EscalationIssue) error
}

type Dispatcher interface {
	Dispatch(eventType string, data interface{}, ownerID string)
}

// Service owns the bug and cycle flows that fan out to escalation rules and
// webhooks.
type Service struct {
	bugs       BugStore
	cycles     CycleStore
	projects   ProjectStore
	evaluator  Evaluator
	dispatcher Dispatcher
	runner     *workers.Runner
}

func NewService(bugs BugStore, cycles CycleStore, projects ProjectStore, evaluator Evaluator, dispatcher Dispatcher, runner *workers.Runner) *Service {
	return &Service{
		bugs:       bugs,
		cycles:     cycles,
		projects:   projects,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		runner:     runner,
	}
}

type CreateBugInput struct {
	CycleID          string          `json:"cycle_id"`
	Title            string          `json:"title"`
	Severity         string          `json:"severity"`
	StepsToReproduce string          `json:"steps_to_reproduce"`
	ExpectedResult   string          `json:"expected_result"`
	ActualResult     string          `json:"actual_result"`
	DeviceInfo       json.RawMessage `json:"device_info"`
	ScreenshotURLs   []string        `json:"screenshot_urls"`
}

// CreateBug stores a bug report filed by reporterID, then evaluates the
// project's escalation rules and notifies the reporter's webhooks in the
// background.
func (s *Service) CreateBug(ctx context.Context, reporterID string, in CreateBugInput) (*models.BugReport, error) {
	if _, err := s.cycles.GetByID(ctx, in.CycleID); err != nil {
		return nil, err
	}

	deviceInfo := "{}"
	if len(in.DeviceInfo) > 0 && string(in.DeviceInfo) != "null" {
		deviceInfo = string(in.DeviceInfo)
	}

	bug := &models.BugReport{
		CycleID:          in.CycleID,
		ReporterID:       reporterID,
		Title:            in.Title,
		Severity:         in.Severity,
		StepsToReproduce: in.StepsToReproduce,
		ExpectedResult:   in.ExpectedResult,
		ActualResult:     in.ActualResult,
		DeviceInfo:       deviceInfo,
		ScreenshotURLs:   in.ScreenshotURLs,
		PriorityScore:    PriorityScore(in.Severity, deviceInfo),
		ReleaseBlocker:   BlocksRelease(in.Severity),
	}
	if err := s.bugs.Create(ctx, bug); err != nil {
		return nil, fmt.Errorf("creating bug report: %w", err)
	}

	issue := bug.EscalationIssue()
	s.runner.Go("escalation.evaluate", func(ctx context.Context) error {
		return s.evaluator.Evaluate(ctx, issue)
	})
	s.dispatcher.Dispatch(models.EventBugReportCreated, bug, reporterID)

	return bug, nil
}

// CompleteCycle marks a cycle completed and notifies the project owner.
// Completing an already completed cycle changes nothing and sends nothing.
func (s *Service) CompleteCycle(ctx context.Context, cycleID, userID string) (*models.TestCycle, error) {
	cycle, err := s.cycles.GetByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.GetByID(ctx, cycle.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != userID {
		return nil, ErrForbidden
	}
	if cycle.Status == models.CycleStatusCompleted {
		return cycle, nil
	}

	if err := s.cycles.UpdateStatus(ctx, cycle.ID, models.CycleStatusCompleted); err != nil {
		return nil, fmt.Errorf("completing cycle %s: %w", cycle.ID, err)
	}
	cycle.Status = models.CycleStatusCompleted

	s.dispatcher.Dispatch(models.EventTestCycleCompleted, map[string]string{"cycle_id": cycle.ID}, project.OwnerID)
	return cycle, nil
}
