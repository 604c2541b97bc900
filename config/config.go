package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the incident alert service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Provider configuration
	WeatherAPIKey string
	NewsAPIKey    string

	// LLM configuration
	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	// SendGrid configuration
	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string

	// RabbitMQ configuration (optional fan-out of analyzed incidents)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Pipeline configuration
	DefaultLocation string
	FetchInterval   time.Duration
	DedupWindow     time.Duration

	// Gating thresholds
	MinRelevance    float64
	NotifyRelevance float64

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "cityguard"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Provider keys
		WeatherAPIKey: getEnv("OPENWEATHERMAP_API_KEY", ""),
		NewsAPIKey:    getEnv("NEWS_API_KEY", ""),

		// LLM defaults
		LLMProvider:  getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		// SendGrid defaults
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "CityGuard Alerts"),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "alerts@cityguard.io"),

		// RabbitMQ defaults (publisher disabled when URL is empty)
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "cityguard"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "incident.analyzed"),

		// Pipeline defaults (10 minute fetch cycle, 24h dedup window)
		DefaultLocation: getEnv("DEFAULT_LOCATION", "New York"),
		FetchInterval:   getDurationEnv("FETCH_INTERVAL", 10*time.Minute),
		DedupWindow:     getDurationEnv("DEDUP_WINDOW", 24*time.Hour),

		// Gating defaults
		MinRelevance:    getFloatEnv("MIN_RELEVANCE", 0.3),
		NotifyRelevance: getFloatEnv("NOTIFY_RELEVANCE", 0.7),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
