package syncer

import (
	"fmt"
	"time"
)

// Config defines configuration for entity synchronizers
type Config struct {
	// Upper bound on a single fetch including authentication
	FetchTimeout time.Duration `toml:"fetch_timeout"`
}

// DefaultConfig returns the default synchronizer configuration
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 30 * time.Second,
	}
}

// validateConfig validates synchronizer configuration and returns error if invalid
func validateConfig(config Config) error {
	if config.FetchTimeout <= 0 {
		return fmt.Errorf("FetchTimeout must be positive, got %v", config.FetchTimeout)
	}

	return nil
}

// Validate exposes validateConfig to the config package
func (c Config) Validate() error {
	return validateConfig(c)
}
