// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the gridgate HTTP API.
type Config struct {
	DBPath     string // path to the SQLite state file
	ListenAddr string // HTTP listen address (default ":8080")
	JWTSecret  string // HS256 shared secret for the principal-context shim
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// Grant cache (the grant store is read-mostly; cell state is never cached)
	GrantCacheSize int           // max cached grant lists (default 8192, 0 disables)
	GrantCacheTTL  time.Duration // cache entry lifetime (default 30s, 0 disables)

	// RequestTimeout bounds each permission check + transition (default 10s).
	RequestTimeout time.Duration

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:         os.Getenv("DB_PATH"),
		ListenAddr:     os.Getenv("LISTEN_ADDR"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		Env:            os.Getenv("ENV"),
		RateLimitRPS:   100,
		RateLimitBurst: 200,
		GrantCacheSize: 8192,
		GrantCacheTTL:  30 * time.Second,
		RequestTimeout: 10 * time.Second,
	}

	if cfg.DBPath == "" {
		cfg.DBPath = "gridgate.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.JWTSecret == "" {
		if strings.EqualFold(cfg.Env, "production") {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret-change-in-production"
		cfg.Warnings = append(cfg.Warnings, "JWT_SECRET not set, using development default")
	}

	if raw := os.Getenv("RATE_LIMIT_RPS"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid RATE_LIMIT_RPS %q, using default", raw))
		} else {
			cfg.RateLimitRPS = v
		}
	}
	if raw := os.Getenv("RATE_LIMIT_BURST"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid RATE_LIMIT_BURST %q, using default", raw))
		} else {
			cfg.RateLimitBurst = v
		}
	}
	if raw := os.Getenv("GRANT_CACHE_SIZE"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid GRANT_CACHE_SIZE %q, using default", raw))
		} else {
			cfg.GrantCacheSize = v
		}
	}
	if raw := os.Getenv("GRANT_CACHE_TTL"); raw != "" {
		v, err := time.ParseDuration(raw)
		if err != nil || v < 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid GRANT_CACHE_TTL %q, using default", raw))
		} else {
			cfg.GrantCacheTTL = v
		}
	}
	if raw := os.Getenv("REQUEST_TIMEOUT"); raw != "" {
		v, err := time.ParseDuration(raw)
		if err != nil || v <= 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid REQUEST_TIMEOUT %q, using default", raw))
		} else {
			cfg.RequestTimeout = v
		}
	}

	return cfg, nil
}
