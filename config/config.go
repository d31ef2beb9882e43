package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the outbreak dashboard service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Public report feed
	PublicWindowDays int

	// Outbreak clustering
	ClusterRadiusKm   float64
	ClusterWindowDays int
	MinClusterSize    int

	// Risk tiers over ai_risk_score (0-10 scale).
	// low < medium threshold <= medium < high threshold <= high
	RiskMediumThreshold float64
	RiskHighThreshold   float64

	// Recent alerts
	AlertLimit int

	// Watch loop
	WatchInterval time.Duration

	// AMQP (optional; publishing disabled when URL is empty)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	config := &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "ecowatch"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		PublicWindowDays: getIntEnv("PUBLIC_WINDOW_DAYS", 30),

		ClusterRadiusKm:   getFloatEnv("CLUSTER_RADIUS_KM", 5.0),
		ClusterWindowDays: getIntEnv("CLUSTER_WINDOW_DAYS", 7),
		MinClusterSize:    getIntEnv("MIN_CLUSTER_SIZE", 2),

		RiskMediumThreshold: getFloatEnv("RISK_MEDIUM_THRESHOLD", 4.0),
		RiskHighThreshold:   getFloatEnv("RISK_HIGH_THRESHOLD", 7.0),

		AlertLimit: getIntEnv("ALERT_LIMIT", 20),

		WatchInterval: getDurationEnv("WATCH_INTERVAL", 10*time.Second),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "outbreak-events"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "outbreak.clusters"),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
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
