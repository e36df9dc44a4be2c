package audit

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates invalid audit trail configuration.
var ErrInvalidConfig = errors.New("invalid audit configuration")

// KeyPrefix prefixes the state store key of every persisted entry.
const KeyPrefix = "audit:"

// Config configures the audit trail.
type Config struct {
	// Capacity is the number of entries kept in memory.
	// Default: 10000
	Capacity int

	// PersistBuffer is the size of the async persist queue. It must be
	// positive when the trail has a state store.
	// Default: 1000
	PersistBuffer int

	// PersistTimeout bounds each state store write.
	// Default: 5 seconds
	PersistTimeout time.Duration

	// TTL is the lifetime of persisted entries.
	// Default: 365 days
	TTL time.Duration
}

// DefaultConfig returns the default audit trail configuration.
func DefaultConfig() *Config {
	return &Config{
		Capacity:       10000,
		PersistBuffer:  1000,
		PersistTimeout: 5 * time.Second,
		TTL:            365 * 24 * time.Hour,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.PersistBuffer < 0 {
		return fmt.Errorf("%w: persist buffer cannot be negative, got %d", ErrInvalidConfig, c.PersistBuffer)
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("%w: persist timeout must be positive, got %v", ErrInvalidConfig, c.PersistTimeout)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: ttl cannot be negative, got %v", ErrInvalidConfig, c.TTL)
	}
	return nil
}

// validateFor checks the configuration for a trail with or without a state
// store.
func (c *Config) validateFor(persist bool) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if persist && c.PersistBuffer == 0 {
		return fmt.Errorf("%w: persist buffer must be positive when a state store is configured", ErrInvalidConfig)
	}
	return nil
}
