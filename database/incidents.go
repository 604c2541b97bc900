package database

import (
	"database/sql"
	"fmt"
	"time"

	"cityguard/models"
)

const incidentColumns = `id, title, description, source, location, severity, category,
	COALESCE(url, ''), COALESCE(ai_summary, ''), relevance_score, is_verified, created_at, updated_at`

func scanIncident(row interface{ Scan(...any) error }) (*models.Incident, error) {
	var inc models.Incident
	err := row.Scan(
		&inc.ID,
		&inc.Title,
		&inc.Description,
		&inc.Source,
		&inc.Location,
		&inc.Severity,
		&inc.Category,
		&inc.URL,
		&inc.AISummary,
		&inc.RelevanceScore,
		&inc.IsVerified,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// UpsertIncident saves one analyzed incident. An existing incident with the
// same (title, source) created inside the dedup window is updated in place
// with the latest analysis; otherwise a new row is inserted.
func (d *Database) UpsertIncident(input models.IncidentInput, analysis models.IncidentAnalysis) (*models.Incident, error) {
	cutoff := time.Now().UTC().Add(-d.dedupWindow)

	var existingID int64
	err := d.db.QueryRow(
		`SELECT id FROM incidents WHERE title = ? AND source = ? AND created_at >= ? LIMIT 1`,
		input.Title, input.Source, cutoff,
	).Scan(&existingID)

	switch {
	case err == nil:
		// Update existing incident with new analysis
		_, err = d.db.Exec(
			`UPDATE incidents SET ai_summary = ?, relevance_score = ?, severity = ?, category = ?,
				is_verified = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			analysis.Summary, analysis.RelevanceScore, analysis.Severity, analysis.Category,
			analysis.IsCredible, existingID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update incident %d: %w", existingID, err)
		}
		return d.GetIncident(existingID)

	case err == sql.ErrNoRows:
		res, err := d.db.Exec(
			`INSERT INTO incidents (title, description, source, location, severity, category, url,
				raw_data, ai_summary, relevance_score, is_verified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			input.Title, input.Description, input.Source, input.Location,
			analysis.Severity, analysis.Category, input.URL, input.RawData,
			analysis.Summary, analysis.RelevanceScore, analysis.IsCredible,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert incident: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get incident id: %w", err)
		}
		now := time.Now().UTC()
		return &models.Incident{
			ID:             id,
			Title:          input.Title,
			Description:    input.Description,
			Source:         input.Source,
			Location:       input.Location,
			Severity:       analysis.Severity,
			Category:       analysis.Category,
			URL:            input.URL,
			AISummary:      analysis.Summary,
			RelevanceScore: analysis.RelevanceScore,
			IsVerified:     analysis.IsCredible,
			CreatedAt:      now,
			UpdatedAt:      now,
		}, nil

	default:
		return nil, fmt.Errorf("failed to look up incident: %w", err)
	}
}

// GetIncident fetches one incident by id.
func (d *Database) GetIncident(id int64) (*models.Incident, error) {
	row := d.db.QueryRow(`SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id)
	inc, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident %d: %w", id, err)
	}
	return inc, nil
}

// RecentIncidents returns verified incidents from the last N hours at or
// above the relevance floor, most relevant first.
func (d *Database) RecentIncidents(hours int, minRelevance float64) ([]models.Incident, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	rows, err := d.db.Query(
		`SELECT `+incidentColumns+` FROM incidents
		WHERE created_at >= ? AND relevance_score >= ? AND is_verified = TRUE
		ORDER BY relevance_score DESC, created_at DESC
		LIMIT 20`,
		cutoff, minRelevance,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent incidents: %w", err)
	}
	defer rows.Close()

	return collectIncidents(rows)
}

// IncidentsBySeverity returns the newest verified incidents at one severity level.
func (d *Database) IncidentsBySeverity(severity string) ([]models.Incident, error) {
	rows, err := d.db.Query(
		`SELECT `+incidentColumns+` FROM incidents
		WHERE severity = ? AND is_verified = TRUE
		ORDER BY created_at DESC
		LIMIT 10`,
		severity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents by severity: %w", err)
	}
	defer rows.Close()

	return collectIncidents(rows)
}

func collectIncidents(rows *sql.Rows) ([]models.Incident, error) {
	var incidents []models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, *inc)
	}
	return incidents, rows.Err()
}

// Stats holds the 24-hour dashboard counters.
type Stats struct {
	TotalIncidents24h    int       `json:"total_incidents_24h"`
	CriticalIncidents24h int       `json:"critical_incidents_24h"`
	HighIncidents24h     int       `json:"high_incidents_24h"`
	WeatherIncidents24h  int       `json:"weather_incidents_24h"`
	NewsIncidents24h     int       `json:"news_incidents_24h"`
	ActiveSubscribers    int       `json:"active_subscribers"`
	LastUpdated          time.Time `json:"last_updated"`
}

// GetStats computes the dashboard counters over the last 24 hours.
func (d *Database) GetStats() (*Stats, error) {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	stats := &Stats{LastUpdated: time.Now().UTC()}

	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.TotalIncidents24h,
			`SELECT COUNT(*) FROM incidents WHERE created_at >= ? AND is_verified = TRUE`,
			[]any{cutoff}},
		{&stats.CriticalIncidents24h,
			`SELECT COUNT(*) FROM incidents WHERE created_at >= ? AND severity = ? AND is_verified = TRUE`,
			[]any{cutoff, models.SeverityCritical}},
		{&stats.HighIncidents24h,
			`SELECT COUNT(*) FROM incidents WHERE created_at >= ? AND severity = ? AND is_verified = TRUE`,
			[]any{cutoff, models.SeverityHigh}},
		{&stats.WeatherIncidents24h,
			`SELECT COUNT(*) FROM incidents WHERE created_at >= ? AND source = 'weather' AND is_verified = TRUE`,
			[]any{cutoff}},
		{&stats.NewsIncidents24h,
			`SELECT COUNT(*) FROM incidents WHERE created_at >= ? AND source = 'news' AND is_verified = TRUE`,
			[]any{cutoff}},
		{&stats.ActiveSubscribers,
			`SELECT COUNT(*) FROM users WHERE email_notifications = TRUE`,
			nil},
	}

	for _, c := range counts {
		if err := d.db.QueryRow(c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
	}

	return stats, nil
}
