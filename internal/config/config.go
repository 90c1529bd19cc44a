// Package config loads the server's runtime configuration from environment
// variables and the economy parameters from an optional YAML file.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultSnapshotTTL     = 30 * time.Second
	defaultSimSchedule     = "@every 1s"
	defaultShutdownTimeout = 5 * time.Second

	// SimulationOff disables the synthetic activity driver.
	SimulationOff = "off"
)

// Config captures runtime configuration loaded from environment variables.
type Config struct {
	Port            string
	LogLevel        string
	DatabaseURL     string // optional; enables the Postgres journal
	RedisURL        string // optional; enables the Redis snapshot publisher
	SnapshotTTL     time.Duration
	EconomyFile     string // optional YAML overriding the default economy
	SimSchedule     string // cron spec for the activity driver, or SimulationOff
	ShutdownTimeout time.Duration
}

// Load reads configuration values from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", defaultPort),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		EconomyFile: os.Getenv("ECONOMY_FILE"),
		SimSchedule: strings.TrimSpace(getEnv("SIM_SCHEDULE", defaultSimSchedule)),
	}

	var err error
	if cfg.SnapshotTTL, err = getDuration("SNAPSHOT_TTL", defaultSnapshotTTL); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Address returns the listen address.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// SimulationEnabled reports whether the activity driver should run.
func (c Config) SimulationEnabled() bool {
	return c.SimSchedule != "" && !strings.EqualFold(c.SimSchedule, SimulationOff)
}

// NewLogger returns a JSON logger at the given level. Unknown levels fall
// back to info.
func NewLogger(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if d < 0 {
		return 0, errors.Errorf("invalid %s: must be non-negative", key)
	}
	return d, nil
}
