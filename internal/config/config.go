// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/api and cmd/notifyctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clubsync/notifier/internal/occurrence"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// Auth — opaque API keys accepted at the edge; empty list disables the
	// check (local development).
	APIKeys []string

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Scheduling
	SweepInterval   time.Duration
	DispatchWorkers int
	ReminderDelay   time.Duration
	MaxReminders    int
	TriggerWindow   time.Duration

	// Recurrence units accepted in periodicType. The set is closed over the
	// built-in steppers; the env var can only narrow it.
	PeriodicUnits []string

	// Delivery
	PushCredentialsFile string

	// Ledger retention
	LedgerRetention time.Duration

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("NOTIFIER_DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or NOTIFIER_DATABASE_URL must be set")
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		APIKeys: envList("API_KEYS", nil),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		SweepInterval:   envDur("SWEEP_INTERVAL", 10*time.Second),
		DispatchWorkers: envInt("DISPATCH_WORKERS", 4),
		ReminderDelay:   envDur("REMINDER_DELAY", 24*time.Hour),
		MaxReminders:    envInt("MAX_REMINDERS", 3),
		TriggerWindow:   envDur("TRIGGER_WINDOW", 15*time.Minute),

		PeriodicUnits: envList("PERIODIC_UNITS", occurrence.AllUnits()),

		PushCredentialsFile: envOr("PUSH_CREDENTIALS_FILE", ""),

		LedgerRetention: envDur("LEDGER_RETENTION", 90*24*time.Hour),

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}

	for _, u := range cfg.PeriodicUnits {
		if !occurrence.KnownUnit(u) {
			return nil, fmt.Errorf("PERIODIC_UNITS: unknown unit %q", u)
		}
	}
	return cfg, nil
}

// UnitKnown reports whether a periodicType value is in the configured set.
func (c *Config) UnitKnown(unit string) bool {
	for _, u := range c.PeriodicUnits {
		if u == unit {
			return true
		}
	}
	return false
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
