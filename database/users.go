package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cityguard/models"
)

// ErrEmailExists is returned when a subscription email is already registered.
var ErrEmailExists = errors.New("email already subscribed")

// CreateUser registers a new notification subscriber.
func (d *Database) CreateUser(username, email, location, minSeverity string) (*models.User, error) {
	if minSeverity == "" {
		minSeverity = models.SeverityMedium
	}

	var existingID int64
	err := d.db.QueryRow(`SELECT id FROM users WHERE email = ?`, email).Scan(&existingID)
	if err == nil {
		return nil, ErrEmailExists
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	res, err := d.db.Exec(
		`INSERT INTO users (username, email, location, email_notifications, min_severity)
		VALUES (?, ?, ?, TRUE, ?)`,
		username, email, location, minSeverity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}

	return &models.User{
		ID:                 id,
		Username:           username,
		Email:              email,
		Location:           location,
		EmailNotifications: true,
		MinSeverity:        minSeverity,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

// GetUserByEmail looks up a subscriber by email address.
func (d *Database) GetUserByEmail(email string) (*models.User, error) {
	var u models.User
	err := d.db.QueryRow(
		`SELECT id, username, email, location, email_notifications, min_severity, created_at
		FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Location,
		&u.EmailNotifications, &u.MinSeverity, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// OptedInUsers returns every user with email notifications enabled.
// Location and severity matching happens in the notifier.
func (d *Database) OptedInUsers() ([]models.User, error) {
	rows, err := d.db.Query(
		`SELECT id, username, email, location, email_notifications, min_severity, created_at
		FROM users WHERE email_notifications = TRUE`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Location,
			&u.EmailNotifications, &u.MinSeverity, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ActiveSubscriptions returns every active alert subscription.
func (d *Database) ActiveSubscriptions() ([]models.AlertSubscription, error) {
	rows, err := d.db.Query(
		`SELECT id, user_id, location, COALESCE(categories, ''), min_severity, is_active, created_at
		FROM alert_subscriptions WHERE is_active = TRUE`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.AlertSubscription
	for rows.Next() {
		var s models.AlertSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Location, &s.Categories,
			&s.MinSeverity, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// CreateSubscription adds a per-location subscription for a user.
func (d *Database) CreateSubscription(userID int64, location, categories, minSeverity string) error {
	if minSeverity == "" {
		minSeverity = models.SeverityMedium
	}
	_, err := d.db.Exec(
		`INSERT INTO alert_subscriptions (user_id, location, categories, min_severity, is_active)
		VALUES (?, ?, ?, ?, TRUE)`,
		userID, location, categories, minSeverity,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// LogNotification appends one delivery-attempt row. Never updated afterwards.
func (d *Database) LogNotification(incidentID, userID int64, status, errorMessage string) error {
	_, err := d.db.Exec(
		`INSERT INTO notification_log (incident_id, user_id, notification_type, status, error_message)
		VALUES (?, ?, 'email', ?, ?)`,
		incidentID, userID, status, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to log notification: %w", err)
	}
	return nil
}
