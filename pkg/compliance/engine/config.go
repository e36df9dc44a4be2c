package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates invalid engine configuration.
var ErrInvalidConfig = errors.New("invalid engine configuration")

// EngineConfig configures the compliance engine.
type EngineConfig struct {
	// StoreTimeout bounds each violation store write made during a check.
	// Default: 2 seconds
	StoreTimeout time.Duration

	// SnapshotActions copies the checked action into each violation.
	// Default: true
	SnapshotActions bool
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		StoreTimeout:    2 * time.Second,
		SnapshotActions: true,
	}
}

// Validate checks the configuration.
func (c *EngineConfig) Validate() error {
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("%w: store timeout must be positive, got %v", ErrInvalidConfig, c.StoreTimeout)
	}
	return nil
}

// WithStoreTimeout sets the violation store write timeout.
func (c *EngineConfig) WithStoreTimeout(d time.Duration) *EngineConfig {
	c.StoreTimeout = d
	return c
}

// WithSnapshotActions toggles copying the checked action into violations.
func (c *EngineConfig) WithSnapshotActions(enabled bool) *EngineConfig {
	c.SnapshotActions = enabled
	return c
}
