package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"clawqa/internal/platform/models"

	"github.com/google/uuid"
)

const bugColumns = `
	id, cycle_id, reporter_id, title, severity, steps_to_reproduce, expected_result,
	actual_result, device_info, screenshot_urls, status, priority_score, release_blocker,
	created_at, updated_at`

type BugRepository struct {
	db *sql.DB
}

func NewBugRepository(db *sql.DB) *BugRepository {
	return &BugRepository{db: db}
}

func (r *BugRepository) Create(ctx context.Context, bug *models.BugReport) error {
	if bug.ID == "" {
		bug.ID = "bug_" + uuid.New().String()
	}
	now := time.Now().Unix()
	bug.CreatedAt = now
	bug.UpdatedAt = now
	if bug.Status == "" {
		bug.Status = "open"
	}
	if bug.ScreenshotURLs == nil {
		bug.ScreenshotURLs = []string{}
	}

	screenshotsJSON, err := json.Marshal(bug.ScreenshotURLs)
	if err != nil {
		return err
	}

	query := `INSERT INTO bug_reports (` + bugColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		bug.ID,
		bug.CycleID,
		bug.ReporterID,
		bug.Title,
		bug.Severity,
		bug.StepsToReproduce,
		bug.ExpectedResult,
		bug.ActualResult,
		bug.DeviceInfo,
		string(screenshotsJSON),
		bug.Status,
		bug.PriorityScore,
		bug.ReleaseBlocker,
		bug.CreatedAt,
		bug.UpdatedAt,
	)
	return err
}

func (r *BugRepository) GetByID(ctx context.Context, id string) (*models.BugReport, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bug_reports WHERE id = ?`, id)
	bug, err := scanBug(row)
	if err != nil {
		return nil, notFound(err)
	}
	return bug, nil
}

func (r *BugRepository) List(ctx context.Context, filter models.BugFilter) ([]*models.BugReport, error) {
	var where []string
	var args []interface{}
	if filter.CycleID != "" {
		where = append(where, "cycle_id = ?")
		args = append(args, filter.CycleID)
	}
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + bugColumns + ` FROM bug_reports`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + bugOrder(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bugs := []*models.BugReport{}
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		bugs = append(bugs, bug)
	}
	return bugs, rows.Err()
}

// SetReleaseBlocker is the single-field update used by block-release rules.
func (r *BugRepository) SetReleaseBlocker(ctx context.Context, id string, blocker bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bug_reports SET release_blocker = ?, updated_at = ? WHERE id = ?`, blocker, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

var bugSortColumns = map[string]string{
	"created_at":     "created_at",
	"priority_score": "priority_score",
	"severity":       "severity",
}

func bugOrder(filter models.BugFilter) string {
	column, ok := bugSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	if strings.EqualFold(filter.SortOrder, "asc") {
		return column + " ASC"
	}
	return column + " DESC"
}

func scanBug(row scanner) (*models.BugReport, error) {
	var b models.BugReport
	var screenshots string
	err := row.Scan(&b.ID, &b.CycleID, &b.ReporterID, &b.Title, &b.Severity, &b.StepsToReproduce, &b.ExpectedResult,
		&b.ActualResult, &b.DeviceInfo, &screenshots, &b.Status, &b.PriorityScore, &b.ReleaseBlocker,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(screenshots), &b.ScreenshotURLs); err != nil {
		b.ScreenshotURLs = []string{}
	}
	return &b, nil
}
