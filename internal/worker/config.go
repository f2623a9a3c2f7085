package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the maintenance worker.
type Config struct {
	// Interval is how often each task runs. Tasks also run once at startup.
	// Default: 1 hour
	Interval time.Duration

	// TaskTimeout is the maximum time a single run may take.
	// Default: 2 minutes
	TaskTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for running tasks.
	// Default: 30 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Interval:        time.Hour,
		TaskTimeout:     2 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1 second, got %v", c.Interval)
	}
	if c.TaskTimeout < time.Second {
		return fmt.Errorf("task timeout must be at least 1 second, got %v", c.TaskTimeout)
	}
	if c.TaskTimeout > c.Interval {
		return fmt.Errorf("task timeout %v exceeds interval %v", c.TaskTimeout, c.Interval)
	}
	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
