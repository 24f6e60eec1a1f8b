package bugs

import (
	"encoding/json"
	"strings"
)

const (
	defaultSeverityScore = 20
	mobileBonus          = 15
)

var severityScores = map[string]int{
	"critical": 100,
	"major":    70,
	"minor":    30,
	"cosmetic": 10,
}

type deviceInfo struct {
	Platform string `json:"platform"`
	OS       string `json:"os"`
}

// PriorityScore ranks a bug by severity, with a bonus for mobile devices.
// deviceInfoJSON that is not a JSON object earns no bonus.
func PriorityScore(severity, deviceInfoJSON string) int {
	score, ok := severityScores[severity]
	if !ok {
		score = defaultSeverityScore
	}

	var info deviceInfo
	if err := json.Unmarshal([]byte(deviceInfoJSON), &info); err != nil {
		return score
	}
	platform := info.Platform
	if platform == "" {
		platform = info.OS
	}
	platform = strings.ToLower(platform)
	if strings.Contains(platform, "ios") || strings.Contains(platform, "android") {
		score += mobileBonus
	}
	return score
}

func BlocksRelease(severity string) bool {
	return severity == "critical"
}
