package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"cityguard/analyzer"
	"cityguard/database"
	"cityguard/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// Handlers serves the dashboard read APIs and the subscribe endpoints.
type Handlers struct {
	db       *database.Database
	analyzer *analyzer.Analyzer
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *database.Database, an *analyzer.Analyzer) *Handlers {
	return &Handlers{db: db, analyzer: an}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cityguard",
	})
}

// GetIncidents returns recent verified incidents for the dashboard.
func (h *Handlers) GetIncidents(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	minRelevance, err := strconv.ParseFloat(c.DefaultQuery("min_relevance", "0.3"), 64)
	if err != nil {
		minRelevance = 0.3
	}

	incidents, err := h.db.RecentIncidents(hours, minRelevance)
	if err != nil {
		log.Errorf("Error fetching incidents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Failed to fetch incidents",
			"incidents": []models.Incident{},
			"count":     0,
		})
		return
	}
	if incidents == nil {
		incidents = []models.Incident{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"incidents": incidents,
		"count":     len(incidents),
	})
}

// GetIncident returns one incident by id.
func (h *Handlers) GetIncident(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid incident id",
		})
		return
	}

	incident, err := h.db.GetIncident(id)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Errorf("Error fetching incident %d: %v", id, err)
		}
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Incident not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"incident": incident,
	})
}

// GetIncidentsBySeverity returns incidents filtered by severity level.
func (h *Handlers) GetIncidentsBySeverity(c *gin.Context) {
	severity := c.Param("severity")
	if !models.ValidSeverity(severity) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid severity level",
		})
		return
	}

	incidents, err := h.db.IncidentsBySeverity(severity)
	if err != nil {
		log.Errorf("Error fetching incidents by severity %s: %v", severity, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch incidents",
		})
		return
	}
	if incidents == nil {
		incidents = []models.Incident{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"incidents": incidents,
		"severity":  severity,
		"count":     len(incidents),
	})
}

// GetStats returns the 24-hour dashboard statistics.
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.db.GetStats()
	if err != nil {
		log.Errorf("Error fetching stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch statistics",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

// GetSummary returns an AI digest of the recent incidents.
func (h *Handlers) GetSummary(c *gin.Context) {
	incidents, err := h.db.RecentIncidents(24, 0.3)
	if err != nil {
		log.Errorf("Error fetching incidents for summary: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch incidents",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": h.analyzer.SummarizeIncidents(incidents),
		"count":   len(incidents),
	})
}

// SubscribeRequest is the POST /subscribe body.
type SubscribeRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Location    string `json:"location" binding:"required"`
	MinSeverity string `json:"min_severity"`
}

// Subscribe registers a new notification subscriber.
func (h *Handlers) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Please fill in all required fields",
		})
		return
	}
	if req.MinSeverity != "" && !models.ValidSeverity(req.MinSeverity) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid severity level",
		})
		return
	}

	user, err := h.db.CreateUser(req.Username, req.Email, req.Location, req.MinSeverity)
	if err == database.ErrEmailExists {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "Email already subscribed to notifications",
		})
		return
	}
	if err != nil {
		log.Errorf("Error creating subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Error creating subscription. Please try again.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Successfully subscribed to CityGuard alerts",
		"user":    user,
	})
}

// SubscriptionRequest is the POST /api/subscriptions body.
type SubscriptionRequest struct {
	Email       string `json:"email" binding:"required"`
	Location    string `json:"location" binding:"required"`
	Categories  string `json:"categories"`
	MinSeverity string `json:"min_severity"`
}

// CreateSubscription adds a per-location alert subscription for an
// existing user.
func (h *Handlers) CreateSubscription(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Please fill in all required fields",
		})
		return
	}
	if req.MinSeverity != "" && !models.ValidSeverity(req.MinSeverity) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid severity level",
		})
		return
	}

	user, err := h.db.GetUserByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "No subscriber with that email",
		})
		return
	}

	if err := h.db.CreateSubscription(user.ID, req.Location, req.Categories, req.MinSeverity); err != nil {
		log.Errorf("Error creating alert subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Error creating subscription. Please try again.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Alert subscription created",
	})
}
