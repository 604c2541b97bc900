package models

import "time"

// Severity levels, ordered. The ordinal is used for notification gating.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// SeverityRank maps a severity name to its ordinal. Unknown values rank as medium.
func SeverityRank(severity string) int {
	if r, ok := severityRank[severity]; ok {
		return r
	}
	return severityRank[SeverityMedium]
}

// ValidSeverity reports whether s is one of the four known severity levels.
func ValidSeverity(s string) bool {
	_, ok := severityRank[s]
	return ok
}

// Incident categories assigned by the analyzer.
var Categories = []string{"weather", "traffic", "crime", "emergency", "infrastructure", "health", "other"}

// ValidCategory reports whether c is a known incident category.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// IncidentInput is a normalized incident extracted from a provider response,
// before AI analysis and persistence.
type IncidentInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"` // 'weather' or 'news'
	Location    string `json:"location"`
	Category    string `json:"category"`
	URL         string `json:"url"`
	RawData     string `json:"raw_data"` // JSON string of the original API response
}

// IncidentAnalysis is the structured verdict returned by the LLM analyzer.
type IncidentAnalysis struct {
	RelevanceScore float64 `json:"relevance_score"`
	Severity       string  `json:"severity"`
	Category       string  `json:"category"`
	IsCredible     bool    `json:"is_credible"`
	Summary        string  `json:"summary"`
}

// Incident is a persisted incident record.
type Incident struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Source         string    `json:"source"`
	Location       string    `json:"location"`
	Severity       string    `json:"severity"`
	Category       string    `json:"category"`
	URL            string    `json:"url"`
	AISummary      string    `json:"ai_summary"`
	RelevanceScore float64   `json:"relevance_score"`
	IsVerified     bool      `json:"is_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User is a notification subscriber.
type User struct {
	ID                 int64     `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	Location           string    `json:"location"`
	EmailNotifications bool      `json:"email_notifications"`
	MinSeverity        string    `json:"min_severity"`
	CreatedAt          time.Time `json:"created_at"`
}

// AlertSubscription is an additional per-location subscription owned by a user.
type AlertSubscription struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Location    string    `json:"location"`
	Categories  string    `json:"categories"` // comma-separated
	MinSeverity string    `json:"min_severity"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationLog is one row per delivery attempt. Append-only.
type NotificationLog struct {
	ID               int64     `json:"id"`
	IncidentID       int64     `json:"incident_id"`
	UserID           int64     `json:"user_id"`
	NotificationType string    `json:"notification_type"` // 'email'
	Status           string    `json:"status"`            // 'sent' or 'failed'
	ErrorMessage     string    `json:"error_message"`
	SentAt           time.Time `json:"sent_at"`
}
