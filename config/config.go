package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the ad scan service.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Moderation service configuration
	ModerationBaseURL string
	ModerationWSURL   string
	SyncTimeout       time.Duration
	VideoSyncTimeout  time.Duration
	ProbeTimeout      time.Duration

	// Scan configuration
	BatchSize  int
	CacheTTL   time.Duration
	MaxWorkers int // accepted for compatibility; the scan loop is sequential

	// Report configuration
	ReportDir string

	// RabbitMQ fanout (optional, disabled when URL is empty)
	RabbitMQURL       string
	RabbitMQExchange  string
	FlaggedRoutingKey string
	ReportRoutingKey  string

	// Redis advisory run lock (optional, disabled when host is empty)
	RedisHost     string
	RedisPassword string
	LockTTL       time.Duration

	// Daemon mode
	PollInterval time.Duration
	HTTPPort     string
}

// Load loads configuration from environment variables. A .env file next to
// the binary is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "ads"),

		ModerationBaseURL: getEnv("MODERATION_URL", "http://localhost:8090"),
		ModerationWSURL:   getEnv("MODERATION_WS_URL", "ws://localhost:8090/ws/moderate"),
		SyncTimeout:       getDurationEnv("MODERATION_SYNC_TIMEOUT", 30*time.Second),
		VideoSyncTimeout:  getDurationEnv("MODERATION_VIDEO_TIMEOUT", 120*time.Second),
		ProbeTimeout:      getDurationEnv("MODERATION_PROBE_TIMEOUT", 3*time.Second),

		BatchSize:  getIntEnv("BATCH_SIZE", 100),
		CacheTTL:   getDurationEnv("CACHE_TTL", 24*time.Hour),
		MaxWorkers: getIntEnv("MAX_WORKERS", 1),

		ReportDir: getEnv("REPORT_DIR", "./reports"),

		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:  getEnv("RABBITMQ_EXCHANGE", "adscan"),
		FlaggedRoutingKey: getEnv("RABBITMQ_FLAGGED_ROUTING_KEY", "adscan.flagged"),
		ReportRoutingKey:  getEnv("RABBITMQ_REPORT_ROUTING_KEY", "adscan.report"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		LockTTL:       getDurationEnv("RUN_LOCK_TTL", 15*time.Minute),

		PollInterval: getDurationEnv("POLL_INTERVAL", 1*time.Hour),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
	}
}

// DSN returns the MySQL connection string for the ad database.
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
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

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
