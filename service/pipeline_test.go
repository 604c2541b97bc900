package service

import (
	"database/sql"
	"testing"
	"time"

	"cityguard/analyzer"
	"cityguard/config"
	"cityguard/models"
	"cityguard/stubllm"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

// fakeFetcher returns a fixed incident batch and counts invocations.
type fakeFetcher struct {
	incidents []models.IncidentInput
	calls     int
}

func (f *fakeFetcher) FetchIncidents(location string) []models.IncidentInput {
	f.calls++
	return f.incidents
}

// scriptedClient overrides the stub's verdicts for gating tests.
type scriptedClient struct {
	stubllm.Client
	analyzeResp     string
	credibilityResp string
}

func (s *scriptedClient) AnalyzeIncident(title, description, source, location string) (string, error) {
	if s.analyzeResp != "" {
		return s.analyzeResp, nil
	}
	return s.Client.AnalyzeIncident(title, description, source, location)
}

func (s *scriptedClient) AssessCredibility(content, sourceURL string) (string, error) {
	if s.credibilityResp != "" {
		return s.credibilityResp, nil
	}
	return s.Client.AssessCredibility(content, sourceURL)
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultLocation: "New York",
		MinRelevance:    0.3,
		NotifyRelevance: 0.7,
	}
}

func weatherInput() models.IncidentInput {
	return models.IncidentInput{
		Title:       "Weather Alert: Thunderstorm",
		Description: "Current weather conditions: thunderstorm. Temperature: 21.0°C",
		Source:      "weather",
		Location:    "New York",
		Category:    "weather",
	}
}

func TestRunCyclePersistsAndNotifies(t *testing.T) {
	it(func() {
		// Stub verdict: relevance 0.8, severity high, credible. Passes both gates.
		mock.ExpectQuery("SELECT id FROM incidents WHERE title = (.+)").
			WithArgs("Weather Alert: Thunderstorm", "weather", sqlmock.AnyArg()).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO incidents").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT (.+) FROM users WHERE email_notifications = TRUE").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(1, "alice", "alice@example.com", "New York", true, "medium", time.Now().UTC()))
		mock.ExpectQuery("SELECT (.+) FROM alert_subscriptions WHERE is_active = TRUE").
			WillReturnRows(sqlmock.NewRows(subColumns))
		mock.ExpectExec("INSERT INTO notification_log").
			WithArgs(int64(1), int64(1), "sent", "").
			WillReturnResult(sqlmock.NewResult(1, 1))

		weather := &fakeFetcher{incidents: []models.IncidentInput{weatherInput()}}
		news := &fakeFetcher{}
		sender := &fakeSender{}
		p := New(testConfig(), testDB, weather, news,
			analyzer.New(stubllm.NewClient()), NewNotifier(testDB, sender), nil)

		p.RunCycle()

		if weather.calls != 1 || news.calls != 1 {
			t.Errorf("fetcher calls = %d/%d, want 1/1", weather.calls, news.calls)
		}
		if len(sender.sent) != 1 {
			t.Errorf("expected 1 alert email, got %d", len(sender.sent))
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestRunCycleDropsLowRelevance(t *testing.T) {
	it(func() {
		client := &scriptedClient{analyzeResp: `{
			"relevance_score": 0.2, "severity": "low", "category": "other",
			"is_credible": true, "summary": "Minor item."}`}

		weather := &fakeFetcher{incidents: []models.IncidentInput{weatherInput()}}
		p := New(testConfig(), testDB, weather, &fakeFetcher{},
			analyzer.New(client), NewNotifier(testDB, &fakeSender{}), nil)

		// No DB expectations: the incident never reaches the store.
		p.RunCycle()

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unexpected store access: %v", err)
		}
	})
}

func TestRunCycleCredibilityOverride(t *testing.T) {
	it(func() {
		// The analysis itself is strong, but the independent credibility
		// check fails: credibility flips to false and relevance halves,
		// so the incident is dropped.
		client := &scriptedClient{credibilityResp: "false"}

		weather := &fakeFetcher{incidents: []models.IncidentInput{weatherInput()}}
		p := New(testConfig(), testDB, weather, &fakeFetcher{},
			analyzer.New(client), NewNotifier(testDB, &fakeSender{}), nil)

		p.RunCycle()

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unexpected store access: %v", err)
		}
	})
}

func TestRunCycleSkipsWhenBusy(t *testing.T) {
	it(func() {
		weather := &fakeFetcher{}
		p := New(testConfig(), testDB, weather, &fakeFetcher{},
			analyzer.New(stubllm.NewClient()), NewNotifier(testDB, &fakeSender{}), nil)

		p.busy = true
		p.RunCycle()

		if weather.calls != 0 {
			t.Errorf("expected the overlapping cycle to be skipped, fetcher ran %d times", weather.calls)
		}
	})
}

func TestShouldNotify(t *testing.T) {
	tests := []struct {
		name      string
		severity  string
		relevance float64
		expected  bool
	}{
		{"critical above threshold", models.SeverityCritical, 0.9, true},
		{"high at threshold", models.SeverityHigh, 0.7, true},
		{"high just below threshold", models.SeverityHigh, 0.69, false},
		{"medium above threshold", models.SeverityMedium, 0.95, false},
		{"low above threshold", models.SeverityLow, 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := models.IncidentAnalysis{Severity: tt.severity, RelevanceScore: tt.relevance}
			if got := shouldNotify(analysis, 0.7); got != tt.expected {
				t.Errorf("shouldNotify(%s, %.2f) = %v, want %v", tt.severity, tt.relevance, got, tt.expected)
			}
		})
	}
}
