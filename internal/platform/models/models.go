package models

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

type Project struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	CreatedAt int64  `json:"created_at"`
}

const (
	CycleStatusOpen      = "open"
	CycleStatusCompleted = "completed"
)

type TestCycle struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"` // open, completed
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type BugReport struct {
	ID               string   `json:"id"`
	CycleID          string   `json:"cycle_id"`
	ReporterID       string   `json:"reporter_id"`
	Title            string   `json:"title"`
	Severity         string   `json:"severity"` // critical, major, minor, cosmetic
	StepsToReproduce string   `json:"steps_to_reproduce"`
	ExpectedResult   string   `json:"expected_result"`
	ActualResult     string   `json:"actual_result"`
	DeviceInfo       string   `json:"device_info"`     // JSON object in DB
	ScreenshotURLs   []string `json:"screenshot_urls"` // JSON array in DB
	Status           string   `json:"status"`
	PriorityScore    int      `json:"priority_score"`
	ReleaseBlocker   bool     `json:"release_blocker"`
	CreatedAt        int64    `json:"created_at"`
	UpdatedAt        int64    `json:"updated_at"`
}

// BugFilter narrows bug listings; empty fields are ignored.
type BugFilter struct {
	CycleID   string
	Severity  string
	Status    string
	SortBy    string // created_at, priority_score, severity
	SortOrder string // asc, desc
}
