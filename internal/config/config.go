package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/studiokicks/leaderboard/internal/api"
	"github.com/studiokicks/leaderboard/internal/coordinator"
	"github.com/studiokicks/leaderboard/internal/db"
	"github.com/studiokicks/leaderboard/internal/leaderboard"
	"github.com/studiokicks/leaderboard/internal/logging"
	"github.com/studiokicks/leaderboard/internal/metrics"
	"github.com/studiokicks/leaderboard/internal/scheduler"
	"github.com/studiokicks/leaderboard/internal/syncer"
	"github.com/studiokicks/leaderboard/internal/upstream"
	"github.com/studiokicks/leaderboard/internal/watermark"
)

// Config represents the application configuration
type Config struct {
	Database    db.Config          `toml:"database"`
	Upstream    upstream.Config    `toml:"upstream"`
	Watermarks  watermark.Config   `toml:"watermarks"`
	Sync        SyncConfig         `toml:"sync"`
	Leaderboard leaderboard.Config `toml:"leaderboard"`
	API         api.Config         `toml:"api"`
	Metrics     metrics.Config     `toml:"metrics"`
	Logging     logging.Config     `toml:"logging"`
}

// SyncConfig holds the settings of the sync pipeline, split across the
// coordinator, synchronizers and scheduler
type SyncConfig struct {
	// Scheduling
	Interval   time.Duration `toml:"interval"`
	Cron       string        `toml:"cron"`
	RunOnStart bool          `toml:"run_on_start"`
	RunTimeout time.Duration `toml:"run_timeout"`

	// Backpressure
	QueueCapacity    int                `toml:"queue_capacity"`
	Policy           coordinator.Policy `toml:"policy"`
	EventSendTimeout time.Duration      `toml:"event_send_timeout"`

	FetchTimeout time.Duration `toml:"fetch_timeout"`
}

// DefaultSyncConfig assembles the package defaults
func DefaultSyncConfig() SyncConfig {
	sched := scheduler.DefaultConfig()
	coord := coordinator.DefaultConfig()
	return SyncConfig{
		Interval:         sched.Interval,
		RunOnStart:       sched.RunOnStart,
		RunTimeout:       sched.RunTimeout,
		QueueCapacity:    coord.QueueCapacity,
		Policy:           coord.Policy,
		EventSendTimeout: coord.EventSendTimeout,
		FetchTimeout:     syncer.DefaultConfig().FetchTimeout,
	}
}

// Scheduler returns the scheduler part of the sync settings
func (c SyncConfig) Scheduler() scheduler.Config {
	return scheduler.Config{
		Interval:   c.Interval,
		Cron:       c.Cron,
		RunOnStart: c.RunOnStart,
		RunTimeout: c.RunTimeout,
	}
}

// Coordinator returns the coordinator part of the sync settings
func (c SyncConfig) Coordinator() coordinator.Config {
	return coordinator.Config{QueueCapacity: c.QueueCapacity, Policy: c.Policy, EventSendTimeout: c.EventSendTimeout}
}

// Syncer returns the synchronizer part of the sync settings
func (c SyncConfig) Syncer() syncer.Config {
	return syncer.Config{FetchTimeout: c.FetchTimeout}
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database:    db.DefaultConfig(),
		Upstream:    upstream.DefaultConfig(),
		Watermarks:  watermark.DefaultConfig(),
		Sync:        DefaultSyncConfig(),
		Leaderboard: leaderboard.DefaultConfig(),
		API:         api.DefaultConfig(),
		Metrics:     metrics.DefaultConfig(),
		Logging:     logging.DefaultConfig(),
	}
}

// LoadFromFile loads configuration from a TOML file over the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}

	return config, nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Environment variables
// 4. Command-line flags (handled by caller)
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		fileConfig, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	config.applyEnv(os.LookupEnv)
	return config, nil
}

// envOverrides maps environment variables onto config fields. Credentials
// are expected to come from here rather than the file.
func (c *Config) envOverrides() map[string]*string {
	return map[string]*string{
		"LEADERBOARD_DB_DSN":                   &c.Database.DSN,
		"LEADERBOARD_UPSTREAM_BASE_URL":        &c.Upstream.BaseURL,
		"LEADERBOARD_UPSTREAM_ORG_ID":          &c.Upstream.OrgID,
		"LEADERBOARD_UPSTREAM_USERNAME":        &c.Upstream.Username,
		"LEADERBOARD_UPSTREAM_PASSWORD":        &c.Upstream.Password,
		"LEADERBOARD_UPSTREAM_ACCESS_KEY":      &c.Upstream.AccessKey,
		"LEADERBOARD_UPSTREAM_CLIENT_NUMBER":   &c.Upstream.ClientNumber,
		"LEADERBOARD_UPSTREAM_HEADER_USERNAME": &c.Upstream.HeaderUsername,
		"LEADERBOARD_UPSTREAM_HEADER_PASSWORD": &c.Upstream.HeaderPassword,
		"LEADERBOARD_LOG_LEVEL":                &c.Logging.Level,
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for key, field := range c.envOverrides() {
		if v, ok := lookup(key); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database driver: %s (must be sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN must be specified")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database max_open_conns must be positive")
	}

	checks := []struct {
		section string
		err     error
	}{
		{"upstream", c.Upstream.Validate()},
		{"watermarks", c.Watermarks.Validate()},
		{"sync", c.Sync.Scheduler().Validate()},
		{"sync", c.Sync.Coordinator().Validate()},
		{"sync", c.Sync.Syncer().Validate()},
		{"leaderboard", c.Leaderboard.Validate()},
		{"api", c.API.Validate()},
		{"metrics", c.Metrics.Validate()},
		{"logging", c.Logging.Validate()},
	}
	for _, check := range checks {
		if check.err != nil {
			return fmt.Errorf("%s: %w", check.section, check.err)
		}
	}

	return nil
}
