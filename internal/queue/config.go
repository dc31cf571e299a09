package queue

import (
	"time"

	"github.com/ternarybob/insiderlens/internal/common"
)

// Config holds the worker loop timings
type Config struct {
	// PollInterval is how long the loop waits when at capacity
	PollInterval time.Duration

	// IdleInterval is how long the loop waits when the queue is empty
	IdleInterval time.Duration

	// DispatchDelay is the pause after dispatching a job
	DispatchDelay time.Duration

	// ErrorBackoff is the pause after a loop-level error
	ErrorBackoff time.Duration

	// MaxConcurrent bounds jobs processed at once
	MaxConcurrent int

	// StuckTimeout is how long a job may stay processing before it is reclaimed
	StuckTimeout time.Duration

	// CleanupInterval is how often the stuck-job sweep runs
	CleanupInterval time.Duration

	// BackoffUnit is multiplied by 5^retryCount to delay a retry
	BackoffUnit time.Duration

	// JobTimeout bounds a single job
	JobTimeout time.Duration
}

// NewDefaultConfig creates a worker configuration with the documented defaults
func NewDefaultConfig() Config {
	return Config{
		PollInterval:    2 * time.Second,
		IdleInterval:    10 * time.Second,
		DispatchDelay:   100 * time.Millisecond,
		ErrorBackoff:    5 * time.Second,
		MaxConcurrent:   1,
		StuckTimeout:    30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		BackoffUnit:     time.Minute,
		JobTimeout:      20 * time.Minute,
	}
}

// ConfigFrom parses the [queue] section
func ConfigFrom(q common.QueueConfig) (Config, error) {
	d, err := q.Durations()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		PollInterval:    d.PollInterval,
		IdleInterval:    d.IdleInterval,
		DispatchDelay:   d.DispatchDelay,
		ErrorBackoff:    d.ErrorBackoff,
		MaxConcurrent:   q.MaxConcurrent,
		StuckTimeout:    d.StuckTimeout,
		CleanupInterval: d.CleanupInterval,
		BackoffUnit:     d.BackoffUnit,
		JobTimeout:      d.JobTimeout,
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	return cfg, nil
}

// Backoff returns the retry delay unit * 5^retryCount: 1m, 5m, 25m by default
func (c Config) Backoff(retryCount int) time.Duration {
	delay := c.BackoffUnit
	for i := 0; i < retryCount; i++ {
		delay *= 5
	}
	return delay
}
