package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	DatabaseURL string // PostgreSQL DSN; empty means SQLite fallback
	SQLitePath  string
	RedisURL    string

	// Session tokens are opaque; JWTSecret only signs verification tokens.
	JWTSecret  string
	SessionTTL time.Duration

	// Interest ledger duplicate policy. When false (default) a second
	// interest for the same (investor, fund) is rejected with 409.
	AllowDuplicateInterests bool

	// How many recent messages to fetch per conversation page.
	MessageWindow int

	// Minimum gap between unread recomputations per notification
	// connection when message events burst.
	NotifyDebounce time.Duration

	// Object storage (S3-compatible).
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	StorageMaxBytes  int64
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/fundconnect.db"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret:  getEnv("JWT_SECRET", "dev-only-secret"),
		SessionTTL: getDuration("SESSION_TTL", 24*time.Hour),

		AllowDuplicateInterests: getEnv("ALLOW_DUPLICATE_INTERESTS", "false") == "true",
		MessageWindow:           getInt("MESSAGE_WINDOW", 50),
		NotifyDebounce:          getDuration("NOTIFY_DEBOUNCE", 250*time.Millisecond),

		StorageEndpoint:  os.Getenv("STORAGE_ENDPOINT"),
		StorageAccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey: os.Getenv("STORAGE_SECRET_KEY"),
		StorageBucket:    getEnv("STORAGE_BUCKET", "fund-documents"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "true") == "true",
		StorageMaxBytes:  getInt64("STORAGE_MAX_BYTES", 25*1024*1024),
	}

	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if os.Getenv("JWT_SECRET") == "" {
			panic("JWT_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
