package scheduler

import (
	"fmt"
	"time"
)

// Config defines when the scheduler triggers sync runs
type Config struct {
	// Time between scheduled runs
	Interval time.Duration `toml:"interval"`

	// Cron expression evaluated in local time. Takes precedence over Interval.
	Cron string `toml:"cron"`

	// Trigger one run immediately on start
	RunOnStart bool `toml:"run_on_start"`

	// Upper bound on how long the scheduler waits for a run it triggered
	RunTimeout time.Duration `toml:"run_timeout"`
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Interval:   15 * time.Minute,
		RunOnStart: true,
		RunTimeout: 10 * time.Minute,
	}
}

// validateConfig validates scheduler configuration and returns error if invalid
func validateConfig(config Config) error {
	if config.Cron != "" {
		if _, err := ParseSchedule(config.Cron); err != nil {
			return err
		}
	} else if config.Interval <= 0 {
		return fmt.Errorf("Interval must be positive, got %v", config.Interval)
	}

	if config.RunTimeout <= 0 {
		return fmt.Errorf("RunTimeout must be positive, got %v", config.RunTimeout)
	}

	return nil
}

// Validate exposes validateConfig to the config package
func (c Config) Validate() error {
	return validateConfig(c)
}
