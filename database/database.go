package database

import (
	"database/sql"
	"fmt"
	"time"

	"cityguard/config"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// Database wraps the MySQL connection and the incident-store queries.
type Database struct {
	db          *sql.DB
	dedupWindow time.Duration
}

// NewDatabase opens the MySQL connection and blocks until it is reachable.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with exponential backoff retry
	var waitInterval time.Duration = 1 * time.Second
	for {
		if err := db.Ping(); err == nil {
			break // Connection successful
		} else {
			log.WithError(err).Warnf("Database connection failed, retrying in %v", waitInterval)
		}
		time.Sleep(waitInterval)
		waitInterval *= 2 // Exponential backoff: 1s, 2s, 4s, 8s, ...
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db, dedupWindow: cfg.DedupWindow}, nil
}

// NewWithDB wraps an existing connection. Used by tests with sqlmock.
func NewWithDB(db *sql.DB, dedupWindow time.Duration) *Database {
	return &Database{db: db, dedupWindow: dedupWindow}
}

// GetDB returns the underlying sql.DB handle.
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// CreateTables creates the incident, user, subscription and notification
// tables if they don't exist.
func (d *Database) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS incidents (
			id INT AUTO_INCREMENT PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			description TEXT NOT NULL,
			source VARCHAR(50) NOT NULL,
			location VARCHAR(100) NOT NULL,
			severity VARCHAR(20) NOT NULL DEFAULT 'medium',
			category VARCHAR(50) NOT NULL DEFAULT 'other',
			url VARCHAR(500),
			raw_data TEXT,
			ai_summary TEXT,
			relevance_score FLOAT DEFAULT 0.0,
			is_verified BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_incidents_title_source (title, source, created_at),
			INDEX idx_incidents_severity (severity),
			INDEX idx_incidents_created_at (created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(64) NOT NULL UNIQUE,
			email VARCHAR(120) NOT NULL UNIQUE,
			location VARCHAR(100) NOT NULL DEFAULT 'New York',
			email_notifications BOOLEAN DEFAULT TRUE,
			min_severity VARCHAR(20) NOT NULL DEFAULT 'medium',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS alert_subscriptions (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			location VARCHAR(100) NOT NULL,
			categories VARCHAR(200),
			min_severity VARCHAR(20) NOT NULL DEFAULT 'medium',
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_subscriptions_user (user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS notification_log (
			id INT AUTO_INCREMENT PRIMARY KEY,
			incident_id INT NOT NULL,
			user_id INT,
			notification_type VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			error_message TEXT,
			sent_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_notification_log_incident (incident_id)
		)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Info("Database tables created/verified successfully")
	return nil
}
