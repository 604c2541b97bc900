package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cityguard/analyzer"
	"cityguard/database"
	"cityguard/stubllm"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

var incidentTestColumns = []string{
	"id", "title", "description", "source", "location", "severity", "category",
	"url", "ai_summary", "relevance_score", "is_verified", "created_at", "updated_at",
}

func newTestHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewHandlers(database.NewWithDB(db, 24*time.Hour), analyzer.New(stubllm.NewClient())), mock
}

func performRequest(h *Handlers, method, path string, body []byte) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/health", h.HealthCheck)
	router.GET("/api/incidents", h.GetIncidents)
	router.GET("/api/incidents/:id", h.GetIncident)
	router.GET("/api/incidents/by-severity/:severity", h.GetIncidentsBySeverity)
	router.GET("/api/stats", h.GetStats)
	router.GET("/api/summary", h.GetSummary)
	router.POST("/subscribe", h.Subscribe)
	router.POST("/api/subscriptions", h.CreateSubscription)

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := performRequest(h, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestGetIncidents(t *testing.T) {
	h, mock := newTestHandlers(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM incidents").
		WithArgs(sqlmock.AnyArg(), 0.3).
		WillReturnRows(sqlmock.NewRows(incidentTestColumns).
			AddRow(1, "Flooding on Main St", "desc", "news", "New York",
				"high", "weather", "", "summary", 0.9, true, now, now))

	w := performRequest(h, "GET", "/api/incidents", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success   bool              `json:"success"`
		Count     int               `json:"count"`
		Incidents []json.RawMessage `json:"incidents"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Count)
	assert.Len(t, resp.Incidents, 1)
}

func TestGetIncidentsEmptyResult(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectQuery("SELECT (.+) FROM incidents").
		WillReturnRows(sqlmock.NewRows(incidentTestColumns))

	w := performRequest(h, "GET", "/api/incidents?hours=48&min_relevance=0.5", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	// The incidents field must be an empty array, not null.
	assert.Contains(t, w.Body.String(), `"incidents":[]`)
}

func TestGetIncidentNotFound(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectQuery("SELECT (.+) FROM incidents WHERE id = (.+)").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	w := performRequest(h, "GET", "/api/incidents/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetIncidentsBySeverityInvalid(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := performRequest(h, "GET", "/api/incidents/by-severity/apocalyptic", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscribe(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectQuery("SELECT id FROM users WHERE email = (.+)").
		WithArgs("alice@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(1, 1))

	body, _ := json.Marshal(SubscribeRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Location: "New York",
	})
	w := performRequest(h, "POST", "/subscribe", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Successfully subscribed")
}

func TestSubscribeMissingFields(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := performRequest(h, "POST", "/subscribe", []byte(`{"username": "alice"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscribeDuplicateEmail(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectQuery("SELECT id FROM users WHERE email = (.+)").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	body, _ := json.Marshal(SubscribeRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Location: "New York",
	})
	w := performRequest(h, "POST", "/subscribe", body)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubscribeInvalidSeverity(t *testing.T) {
	h, _ := newTestHandlers(t)
	body, _ := json.Marshal(SubscribeRequest{
		Username:    "alice",
		Email:       "alice@example.com",
		Location:    "New York",
		MinSeverity: "extreme",
	})
	w := performRequest(h, "POST", "/subscribe", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSubscription(t *testing.T) {
	h, mock := newTestHandlers(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = (.+)").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "username", "email", "location", "email_notifications", "min_severity", "created_at"}).
			AddRow(1, "alice", "alice@example.com", "New York", true, "medium", now))
	mock.ExpectExec("INSERT INTO alert_subscriptions").
		WithArgs(int64(1), "Boston", "weather,traffic", "high").
		WillReturnResult(sqlmock.NewResult(1, 1))

	body, _ := json.Marshal(SubscriptionRequest{
		Email:       "alice@example.com",
		Location:    "Boston",
		Categories:  "weather,traffic",
		MinSeverity: "high",
	})
	w := performRequest(h, "POST", "/api/subscriptions", body)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateSubscriptionUnknownEmail(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = (.+)").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	body, _ := json.Marshal(SubscriptionRequest{
		Email:    "nobody@example.com",
		Location: "Boston",
	})
	w := performRequest(h, "POST", "/api/subscriptions", body)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSummary(t *testing.T) {
	h, mock := newTestHandlers(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM incidents").
		WillReturnRows(sqlmock.NewRows(incidentTestColumns).
			AddRow(1, "Flooding on Main St", "desc", "news", "New York",
				"high", "weather", "", "summary", 0.9, true, now, now))

	w := performRequest(h, "GET", "/api/summary", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "summary")
}
