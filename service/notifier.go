package service

import (
	"strings"

	"cityguard/database"
	"cityguard/email"
	"cityguard/metrics"
	"cityguard/models"

	"github.com/apex/log"
)

// Notifier selects eligible subscribers for an incident and sends alert
// emails, logging every attempt to the notification log.
type Notifier struct {
	db     *database.Database
	sender email.Sender
}

func NewNotifier(db *database.Database, sender email.Sender) *Notifier {
	return &Notifier{db: db, sender: sender}
}

// Dispatch emails every eligible subscriber for the incident and returns the
// number of attempts. One failing recipient never blocks the rest; each
// attempt gets a notification_log row regardless of outcome.
func (n *Notifier) Dispatch(incident *models.Incident) int {
	users, err := n.db.OptedInUsers()
	if err != nil {
		log.Errorf("Error finding eligible users for incident %d: %v", incident.ID, err)
		return 0
	}

	subs, err := n.db.ActiveSubscriptions()
	if err != nil {
		// Location matching still works off the users table.
		log.Errorf("Error loading alert subscriptions: %v", err)
	}
	subsByUser := make(map[int64][]models.AlertSubscription)
	for _, s := range subs {
		subsByUser[s.UserID] = append(subsByUser[s.UserID], s)
	}

	attempts := 0
	for _, user := range users {
		if !eligible(user, subsByUser[user.ID], incident) {
			continue
		}

		status := "sent"
		errorMessage := ""
		if err := n.sender.SendAlert(user, *incident); err != nil {
			log.Errorf("Failed to send notification to user %d: %v", user.ID, err)
			status = "failed"
			errorMessage = err.Error()
		}
		metrics.NotificationsTotal.WithLabelValues(status).Inc()

		if err := n.db.LogNotification(incident.ID, user.ID, status, errorMessage); err != nil {
			log.Errorf("Failed to log notification for incident %d, user %d: %v",
				incident.ID, user.ID, err)
		}
		attempts++
	}

	log.Infof("Sent notifications for incident %d to %d users", incident.ID, attempts)
	return attempts
}

// eligible applies location matching and the per-subscriber severity floor.
// A user matches through their home location or through any active
// subscription whose location matches; each path honors its own stored
// minimum severity.
func eligible(user models.User, subs []models.AlertSubscription, incident *models.Incident) bool {
	rank := models.SeverityRank(incident.Severity)

	if locationMatches(user.Location, incident.Location) &&
		rank >= models.SeverityRank(user.MinSeverity) {
		return true
	}

	for _, sub := range subs {
		if !locationMatches(sub.Location, incident.Location) {
			continue
		}
		if rank < models.SeverityRank(sub.MinSeverity) {
			continue
		}
		if !categoryAllowed(sub.Categories, incident.Category) {
			continue
		}
		return true
	}
	return false
}

// locationMatches is an intentionally loose symmetric containment match:
// "New York" matches "New York, NY" and vice versa.
func locationMatches(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// categoryAllowed checks the subscription's comma-separated category list.
// An empty list allows every category.
func categoryAllowed(categories, category string) bool {
	categories = strings.TrimSpace(categories)
	if categories == "" {
		return true
	}
	for _, c := range strings.Split(categories, ",") {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}
