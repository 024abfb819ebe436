// Package retry provides exponential backoff for transient API failures and
// clock-driven polling for state confirmation.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

// ErrPollTimeout is returned by Poll when the condition was not met in time.
var ErrPollTimeout = errors.New("timed out waiting for condition")

// Config holds retry configuration.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Clock        clock.Clock
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// WithExponentialBackoff executes the operation with exponential backoff retry.
// It retries the operation up to MaxRetries times, with exponentially increasing
// delays between attempts. Context cancellation is respected throughout.
//
// Errors wrapped with Fatal() are not retried.
func WithExponentialBackoff(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := &Config{
		MaxRetries:   5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Clock:        clock.RealClock{},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			return fmt.Errorf("fatal error (not retrying): %w", err)
		}

		if attempt < cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled after %d attempts: %w", attempt+1, ctx.Err())
			case <-cfg.Clock.After(delay):
				delay = time.Duration(float64(delay) * cfg.Multiplier)
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			}
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", cfg.MaxRetries+1, lastErr)
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithInitialDelay sets the initial delay between retries.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithClock overrides the clock used to wait between attempts.
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.Clock = clk
	}
}

// Condition reports whether the awaited state has been reached.
// A non-nil error aborts polling immediately.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates cond immediately and then every interval until it returns
// true, returns an error, or timeout elapses. It returns the time elapsed
// until the condition was first observed.
//
// Waiting between checks is done with clk.Sleep so a fake clock advances
// simulated time instead of blocking. On timeout the returned error wraps
// ErrPollTimeout and the elapsed duration is at least timeout.
func Poll(ctx context.Context, clk clock.Clock, interval, timeout time.Duration, cond Condition) (time.Duration, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	start := clk.Now()
	for {
		done, err := cond(ctx)
		elapsed := clk.Since(start)
		if err != nil {
			return elapsed, err
		}
		if done {
			return elapsed, nil
		}
		if elapsed >= timeout {
			return elapsed, fmt.Errorf("%w after %s", ErrPollTimeout, elapsed.Round(time.Second))
		}
		if err := ctx.Err(); err != nil {
			return elapsed, fmt.Errorf("polling cancelled: %w", err)
		}

		wait := interval
		if remaining := timeout - elapsed; remaining < wait {
			wait = remaining
		}
		clk.Sleep(wait)
	}
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
// Operations that encounter fatal errors will not be retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
