package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ConfigurationError indicates required settings are missing. It is
// fatal at startup, before any sync is attempted.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Field)
}

// Config holds all configuration for the stock sync service
type Config struct {
	// Server
	Port        string
	Environment string

	// Database. When DATABASE_URL is empty the service falls back to a
	// local sqlite file at SQLitePath.
	DatabaseURL string
	SQLitePath  string

	// Cin7 Core (DEAR) API
	Cin7AccountID string
	Cin7APIKey    string
	Cin7BaseURL   string

	// Sync Settings
	SyncOverlap      time.Duration // safety overlap subtracted from the high-water mark
	SyncPageSize     int           // rows per list page; larger pages mean fewer rate-limited calls
	SyncMaxOrders    int           // cap on orders per pass, against unbounded backfills
	SyncTimeout      time.Duration // wall-clock bound on one pass
	SyncLockTTL      time.Duration // advisory lease duration
	InitialLookback  time.Duration // window for the very first pass, when no state exists

	// Rate Limiting: minimum interval between list calls and between
	// detail calls, keeping well under the provider's 60 req/min.
	ListInterval   time.Duration
	DetailInterval time.Duration

	// Replenishment defaults
	LeadTimeDays int
	BufferDays   int
}

// Load loads configuration from environment variables. A .env file in
// the working directory is honored for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "stock_sync.db"),

		Cin7AccountID: getEnv("CIN7_ACCOUNT_ID", ""),
		Cin7APIKey:    getEnv("CIN7_API_KEY", ""),
		Cin7BaseURL:   getEnv("CIN7_BASE_URL", "https://inventory.dearsystems.com/ExternalApi/v2"),

		SyncOverlap:     getEnvAsDuration("SYNC_OVERLAP", time.Hour),
		SyncPageSize:    getEnvAsInt("SYNC_PAGE_SIZE", 1000),
		SyncMaxOrders:   getEnvAsInt("SYNC_MAX_ORDERS", 1000),
		SyncTimeout:     getEnvAsDuration("SYNC_TIMEOUT", 45*time.Minute),
		SyncLockTTL:     getEnvAsDuration("SYNC_LOCK_TTL", 45*time.Minute),
		InitialLookback: getEnvAsDuration("SYNC_INITIAL_LOOKBACK", 7*24*time.Hour),

		ListInterval:   getEnvAsDuration("CIN7_LIST_INTERVAL", 1200*time.Millisecond),
		DetailInterval: getEnvAsDuration("CIN7_DETAIL_INTERVAL", 1800*time.Millisecond),

		LeadTimeDays: getEnvAsInt("LEAD_TIME_DAYS", 30),
		BufferDays:   getEnvAsInt("BUFFER_DAYS", 30),
	}

	if config.Cin7AccountID == "" {
		return nil, &ConfigurationError{Field: "CIN7_ACCOUNT_ID"}
	}
	if config.Cin7APIKey == "" {
		return nil, &ConfigurationError{Field: "CIN7_API_KEY"}
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
