package upstream

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the studio API location and credentials
type Config struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`

	// Login credentials
	OrgID    string `toml:"org_id"`
	Username string `toml:"username"`
	Password string `toml:"password"`

	// Sent as headers on every query
	AccessKey      string `toml:"access_key"`
	ClientNumber   string `toml:"client_number"`
	HeaderUsername string `toml:"header_username"`
	HeaderPassword string `toml:"header_password"`
}

// DefaultConfig returns the default upstream configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://studiokickslosgatos.perfectmind.com",
		Timeout: 30 * time.Second,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url must be http or https, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return errors.New("upstream.timeout must be positive")
	}
	return nil
}
