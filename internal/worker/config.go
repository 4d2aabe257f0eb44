package worker

import (
	"fmt"
	"time"
)

// Config tunes the job pool. Zero values are not usable; start from
// DefaultConfig or parse from the environment.
type Config struct {
	// Concurrency is the number of goroutines polling the jobs table.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"2"`

	// PollInterval is how long an idle goroutine sleeps between polls.
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`

	// JobTimeout cancels a job's context; the attempt then counts as failed.
	JobTimeout time.Duration `env:"WORKER_JOB_TIMEOUT" envDefault:"1m"`

	// ShutdownTimeout bounds how long Stop waits for running jobs.
	ShutdownTimeout time.Duration `env:"WORKER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// StaleJobThreshold is the age after which a running job is assumed to
	// belong to a dead process and is reset on startup.
	StaleJobThreshold time.Duration `env:"WORKER_STALE_JOB_THRESHOLD" envDefault:"10m"`
}

// DefaultConfig matches the environment defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		JobTimeout:        time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

// Validate rejects settings that would spin or never finish.
func (c Config) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > 100 {
		return fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency)
	}

	minimums := []struct {
		name string
		got  time.Duration
		min  time.Duration
	}{
		{"poll interval", c.PollInterval, time.Second},
		{"job timeout", c.JobTimeout, time.Second},
		{"shutdown timeout", c.ShutdownTimeout, time.Second},
		{"stale job threshold", c.StaleJobThreshold, time.Minute},
	}
	for _, m := range minimums {
		if m.got < m.min {
			return fmt.Errorf("%s must be at least %v, got %v", m.name, m.min, m.got)
		}
	}

	// A job that outlives the stale threshold would be picked up twice.
	if c.JobTimeout >= c.StaleJobThreshold {
		return fmt.Errorf("job timeout %v must be shorter than stale job threshold %v", c.JobTimeout, c.StaleJobThreshold)
	}
	return nil
}
