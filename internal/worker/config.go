package worker

import (
	"errors"
	"fmt"
	"time"
)

// Config tunes the email worker. New fills zero fields from DefaultConfig.
type Config struct {
	Concurrency  int           // goroutines claiming jobs
	PollInterval time.Duration // wait after an empty poll
	JobTimeout   time.Duration // deadline for one attempt; an SMTP dial can hang without it

	// ShutdownTimeout bounds how long Stop waits for in-flight sends.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is the age at which a running job is assumed to
	// belong to a crashed process and is requeued on Start. It must exceed
	// JobTimeout or a slow send could be delivered twice.
	StaleJobThreshold time.Duration
}

// DefaultConfig matches the WORKER_* environment defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		JobTimeout:        5 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency == 0 {
		c.Concurrency = d.Concurrency
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.StaleJobThreshold == 0 {
		c.StaleJobThreshold = d.StaleJobThreshold
	}
	return c
}

// Validate reports every out-of-range field.
func (c Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 || c.Concurrency > 100 {
		errs = append(errs, fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency))
	}
	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("poll interval must be at least 1s, got %v", c.PollInterval))
	}
	if c.JobTimeout < time.Second {
		errs = append(errs, fmt.Errorf("job timeout must be at least 1s, got %v", c.JobTimeout))
	}
	if c.ShutdownTimeout < time.Second {
		errs = append(errs, fmt.Errorf("shutdown timeout must be at least 1s, got %v", c.ShutdownTimeout))
	}
	if c.StaleJobThreshold <= c.JobTimeout {
		errs = append(errs, fmt.Errorf("stale job threshold %v must exceed job timeout %v", c.StaleJobThreshold, c.JobTimeout))
	}
	return errors.Join(errs...)
}
