// Package config loads the reading engine's configuration from command-line
// flags, environment variables and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Activity store backends.
const (
	ActivityBackendRedis  = "redis"
	ActivityBackendBadger = "badger"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Activity  ActivityConfig
	Auth      AuthConfig
	Engine    EngineConfig
	Sweep     SweepConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `env:"ENV" envDefault:"development"`
	// DataDir is the root for on-disk state (database, badger, auth key).
	DataDir string `env:"DATA_DIR"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	// Path defaults to {DataDir}/readtrack.db.
	Path string `env:"DATABASE_PATH"`
}

// ActivityConfig selects and configures the daily activity counter backend.
type ActivityConfig struct {
	Backend       string        `env:"ACTIVITY_BACKEND" envDefault:"badger"`
	TTL           time.Duration `env:"ACTIVITY_TTL" envDefault:"168h"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	// RedisConnectTimeout bounds the startup connectivity retry.
	RedisConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	// BadgerPath defaults to {DataDir}/activity.
	BadgerPath string `env:"BADGER_PATH"`
}

// AuthConfig holds bearer token configuration.
type AuthConfig struct {
	// TokenKeyHex is the hex-encoded PASETO v4 symmetric key. When empty the key
	// is loaded from (or generated into) {DataDir}/auth.key.
	TokenKeyHex   string        `env:"AUTH_TOKEN_KEY"`
	TokenDuration time.Duration `env:"AUTH_TOKEN_DURATION" envDefault:"24h"`
}

// EngineConfig holds the session, streak and points tunables.
type EngineConfig struct {
	IdleTimeout        time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	StreakLookbackDays int           `env:"STREAK_LOOKBACK_DAYS" envDefault:"90"`
	RecentActivitySize int           `env:"RECENT_ACTIVITY_SIZE" envDefault:"30"`
	TimeZone           string        `env:"ENGINE_TIME_ZONE" envDefault:"UTC"`

	// Zero means unbounded.
	MaxMajorUnit int `env:"MAX_MAJOR_UNIT" envDefault:"0"`
	MaxMinorUnit int `env:"MAX_MINOR_UNIT" envDefault:"0"`

	PointsPerUnit       int `env:"POINTS_PER_UNIT" envDefault:"1"`
	PointsPerMinute     int `env:"POINTS_PER_MINUTE" envDefault:"2"`
	StreakBonusPerDay   int `env:"STREAK_BONUS_PER_DAY" envDefault:"5"`
	StreakBonusCap      int `env:"STREAK_BONUS_CAP" envDefault:"30"`
	GoalCompletionBonus int `env:"GOAL_COMPLETION_BONUS" envDefault:"25"`
	ExperiencePerLevel  int `env:"EXPERIENCE_PER_LEVEL" envDefault:"1000"`
}

// Location resolves TimeZone. Validate guarantees it loads.
func (e EngineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(e.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SweepConfig holds the stale-session sweeper schedule.
type SweepConfig struct {
	Enabled   bool   `env:"SWEEP_ENABLED" envDefault:"true"`
	Schedule  string `env:"SWEEP_SCHEDULE" envDefault:"@every 5m"`
	BatchSize int    `env:"SWEEP_BATCH_SIZE" envDefault:"100"`
}

// RateLimitConfig holds the per-user limit on progress updates.
type RateLimitConfig struct {
	ProgressRPS   float64 `env:"RATE_LIMIT_PROGRESS_RPS" envDefault:"5"`
	ProgressBurst int     `env:"RATE_LIMIT_PROGRESS_BURST" envDefault:"20"`
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("readtrack", flag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "Path to .env file")
	overrides := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// godotenv.Load never overrides variables already present in the environment.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", *envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	var applyErr error
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok && applyErr == nil {
			applyErr = apply(cfg, f.Value.String())
		}
	})
	if applyErr != nil {
		return nil, applyErr
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

type override func(cfg *Config, value string) error

// registerFlags declares the flags that may override the environment. Only
// flags explicitly set on the command line are applied.
func registerFlags(fs *flag.FlagSet) map[string]override {
	str := func(dst func(*Config) *string) override {
		return func(cfg *Config, v string) error { *dst(cfg) = v; return nil }
	}
	dur := func(name string, dst func(*Config) *time.Duration) override {
		return func(cfg *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, v, err)
			}
			*dst(cfg) = d
			return nil
		}
	}

	flags := map[string]struct {
		usage string
		apply override
	}{
		"env":              {"Environment (development, staging, production)", str(func(c *Config) *string { return &c.App.Environment })},
		"data-dir":         {"Directory for on-disk state", str(func(c *Config) *string { return &c.App.DataDir })},
		"log-level":        {"Log level (debug, info, warn, error)", str(func(c *Config) *string { return &c.Logger.Level })},
		"port":             {"Server port (default: 8080)", str(func(c *Config) *string { return &c.Server.Port })},
		"db-path":          {"SQLite database path", str(func(c *Config) *string { return &c.Database.Path })},
		"activity-backend": {"Daily activity backend (redis, badger)", str(func(c *Config) *string { return &c.Activity.Backend })},
		"redis-addr":       {"Redis address for the activity store", str(func(c *Config) *string { return &c.Activity.RedisAddr })},
		"time-zone":        {"IANA time zone used for day bucketing", str(func(c *Config) *string { return &c.Engine.TimeZone })},
		"sweep-schedule":   {"Cron schedule for the stale-session sweep", str(func(c *Config) *string { return &c.Sweep.Schedule })},
		"idle-timeout": {"Session idle timeout (default: 30m)", dur("idle timeout", func(c *Config) *time.Duration {
			return &c.Engine.IdleTimeout
		})},
		"read-timeout": {"HTTP read timeout (default: 15s)", dur("read timeout", func(c *Config) *time.Duration {
			return &c.Server.ReadTimeout
		})},
		"write-timeout": {"HTTP write timeout (default: 15s)", dur("write timeout", func(c *Config) *time.Duration {
			return &c.Server.WriteTimeout
		})},
	}

	out := make(map[string]override, len(flags))
	for name, f := range flags {
		fs.String(name, "", f.usage)
		out[name] = f.apply
	}
	return out
}

// Validate checks that all required config values are present and valid.
//
//nolint:gocyclo // Flat list of independent checks.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty after expansion")
	}

	switch c.Activity.Backend {
	case ActivityBackendRedis:
		if c.Activity.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis activity backend")
		}
	case ActivityBackendBadger:
		if c.Activity.BadgerPath == "" {
			return errors.New("badger path cannot be empty after expansion")
		}
	default:
		return fmt.Errorf("invalid activity backend: %q (must be redis or badger)", c.Activity.Backend)
	}
	if c.Activity.TTL < 24*time.Hour {
		return fmt.Errorf("activity TTL %s must cover at least one day", c.Activity.TTL)
	}

	if c.Auth.TokenDuration <= 0 {
		return errors.New("AUTH_TOKEN_DURATION must be positive")
	}

	if _, err := time.LoadLocation(c.Engine.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Engine.TimeZone, err)
	}
	if c.Engine.IdleTimeout <= 0 {
		return errors.New("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.Engine.StreakLookbackDays < 1 {
		return errors.New("STREAK_LOOKBACK_DAYS must be at least 1")
	}
	if c.Engine.RecentActivitySize < 1 {
		return errors.New("RECENT_ACTIVITY_SIZE must be at least 1")
	}
	if c.Engine.MaxMajorUnit < 0 || c.Engine.MaxMinorUnit < 0 {
		return errors.New("position bounds must not be negative")
	}
	if c.Engine.ExperiencePerLevel < 1 {
		return errors.New("EXPERIENCE_PER_LEVEL must be at least 1")
	}

	if c.Sweep.Enabled && c.Sweep.Schedule == "" {
		return errors.New("SWEEP_SCHEDULE is required when the sweep is enabled")
	}
	if c.Sweep.BatchSize < 1 {
		return errors.New("SWEEP_BATCH_SIZE must be at least 1")
	}

	if c.RateLimit.ProgressRPS <= 0 || c.RateLimit.ProgressBurst < 1 {
		return errors.New("progress rate limit must be positive")
	}

	return nil
}

// expandPaths resolves DataDir and derives the default on-disk locations.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.App.DataDir, err = expandPath(c.App.DataDir, filepath.Join(homeDir, ".readtrack")); err != nil {
		return fmt.Errorf("invalid data dir: %w", err)
	}
	if c.Database.Path, err = expandPath(c.Database.Path, filepath.Join(c.App.DataDir, "readtrack.db")); err != nil {
		return fmt.Errorf("invalid database path: %w", err)
	}
	if c.Activity.BadgerPath, err = expandPath(c.Activity.BadgerPath, filepath.Join(c.App.DataDir, "activity")); err != nil {
		return fmt.Errorf("invalid badger path: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}
