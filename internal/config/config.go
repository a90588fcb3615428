// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Durable event log (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Hot counter store and ingest stream (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Tracking pipeline
	TrackQueueSize int           `env:"TRACK_QUEUE_SIZE" envDefault:"4096"`
	TrackWorkers   int           `env:"TRACK_WORKERS" envDefault:"4"`
	TrackTimeout   time.Duration `env:"TRACK_TIMEOUT" envDefault:"250ms"`

	// Hot tier retention
	HotBucketTTL  time.Duration `env:"HOT_BUCKET_TTL" envDefault:"1h"`
	RollupTTLDays int           `env:"ROLLUP_TTL_DAYS" envDefault:"31"`

	// Durable log retention
	RetentionDays int           `env:"RETENTION_DAYS" envDefault:"30"`
	SweepEnabled  bool          `env:"SWEEP_ENABLED" envDefault:"false"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"24h"`

	// Aggregation tunables
	TrendThresholdPoints float64 `env:"TREND_THRESHOLD_POINTS" envDefault:"5"`

	// Service token auth for query and admin endpoints.
	// Argon2id hash in PHC format; empty disables auth (dev only).
	ServiceTokenHash string `env:"SERVICE_TOKEN_HASH" envDefault:""`

	// CORS configuration for dashboard origins.
	// Comma-separated list of allowed origins.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// RollupTTL returns the daily rollup retention as a duration.
func (c *Config) RollupTTL() time.Duration {
	return time.Duration(c.RollupTTLDays) * 24 * time.Hour
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
