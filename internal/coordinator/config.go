package coordinator

import (
	"fmt"
	"time"
)

// Policy decides what happens to a sync request while another is active
type Policy string

const (
	// PolicyQueue holds requests in a bounded queue and drops the overflow
	PolicyQueue Policy = "queue"
	// PolicyReject refuses requests while a run is active or queued
	PolicyReject Policy = "reject"
)

// Config defines configuration for the sync coordinator
type Config struct {
	QueueCapacity int    `toml:"queue_capacity"`
	Policy        Policy `toml:"policy"`
	// How long a synchronizer waits to hand an event to the run
	EventSendTimeout time.Duration `toml:"event_send_timeout"`
}

// DefaultConfig returns the default coordinator configuration
func DefaultConfig() Config {
	return Config{
		QueueCapacity:    10,
		Policy:           PolicyQueue,
		EventSendTimeout: 5 * time.Second,
	}
}

// Validate checks coordinator configuration
func (c Config) Validate() error {
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("QueueCapacity must be positive, got %d", c.QueueCapacity)
	}
	if c.Policy != PolicyQueue && c.Policy != PolicyReject {
		return fmt.Errorf("unknown policy %q (must be %q or %q)", c.Policy, PolicyQueue, PolicyReject)
	}
	if c.EventSendTimeout <= 0 {
		return fmt.Errorf("EventSendTimeout must be positive, got %v", c.EventSendTimeout)
	}
	return nil
}
