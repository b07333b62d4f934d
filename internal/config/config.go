package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // Postgres; when empty the SQLite path is used instead
	SQLitePath  string
	RedisURL    string // optional, enables rate limiting when set

	JWTSecret  string
	TokenTTL   time.Duration
	MessageKey string // process-wide secret for message encryption at rest

	FrontendURL string
	ImagesDir   string

	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/interact.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   getEnv("JWT_KEY", "dev-only-insecure-secret"),
		TokenTTL:    12 * time.Hour,
		MessageKey:  getEnv("CRYPTO_KEY", "dev-only-insecure-message-key"),
		FrontendURL: getEnv("FRONTEND_URL", "*"),
		ImagesDir:   getEnv("IMAGES_DIR", "images"),
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	// In production, secrets must be provided explicitly
	if cfg.Env == "production" {
		if os.Getenv("JWT_KEY") == "" {
			panic("JWT_KEY is required in production")
		}
		if os.Getenv("CRYPTO_KEY") == "" {
			panic("CRYPTO_KEY is required in production")
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
