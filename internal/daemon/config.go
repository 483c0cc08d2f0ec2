// Package daemon manages the pulse runtime lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/pulsefit/pulse/internal/domain"
)

// Config holds all pulse configuration.
type Config struct {
	User       UserConfig       `toml:"user"`
	Store      StoreConfig      `toml:"store"`
	API        APIConfig        `toml:"api"`
	Engagement EngagementConfig `toml:"engagement"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Logging    LoggingConfig    `toml:"logging"`
}

// UserConfig identifies whose state is persisted.
type UserConfig struct {
	Key string `toml:"key"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend       string `toml:"backend"` // "sqlite" or "redis"
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	KeyPrefix     string `toml:"key_prefix"`
}

// APIConfig controls the local HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// EngagementConfig tunes the engines.
type EngagementConfig struct {
	CompletionWindowDays int   `toml:"completion_window_days"`
	TrendWindowDays      int   `toml:"trend_window_days"`
	NudgeHistory         int   `toml:"nudge_history"`
	StreakMilestones     []int `toml:"streak_milestones"`
	RandomSeed           int64 `toml:"random_seed"` // 0 = seeded from the clock
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	Mode  string `toml:"mode"` // "dev" or "prod"
}

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		User: UserConfig{Key: "default"},
		Store: StoreConfig{
			Backend:   BackendSQLite,
			Dir:       pulseHome(),
			RedisAddr: "localhost:6379",
			KeyPrefix: "",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7777,
		},
		Engagement: EngagementConfig{
			CompletionWindowDays: 30,
			TrendWindowDays:      14,
			NudgeHistory:         50,
			StreakMilestones:     slices.Clone(domain.DefaultStreakMilestones),
		},
		Telemetry: TelemetryConfig{Prometheus: true},
		Logging: LoggingConfig{
			Level: "info",
			Mode:  "dev",
		},
	}
}

// Validate checks values that would otherwise fail deep in startup.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("store.backend %q: want %q or %q", c.Store.Backend, BackendSQLite, BackendRedis)
	}
	if c.User.Key == "" {
		return fmt.Errorf("user.key must not be empty")
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	for _, m := range c.Engagement.StreakMilestones {
		if m <= 0 {
			return fmt.Errorf("engagement.streak_milestones: %d must be positive", m)
		}
	}
	return nil
}

// ConfigPath returns the path of the config file.
func ConfigPath() string {
	return filepath.Join(pulseHome(), "config.toml")
}

// LoadConfig reads config from $PULSE_HOME/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = pulseHome()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $PULSE_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// pulseHome returns the pulse data directory.
func pulseHome() string {
	if env := os.Getenv("PULSE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pulse")
}

// PulseHome is exported for use by other packages.
func PulseHome() string {
	return pulseHome()
}
