package retry

import (
	"context"
	"fmt"
	"time"
)

// Clock abstracts waiting so tests can observe backoff without sleeping
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RealClock is the wall-clock implementation used by default
var RealClock Clock = realClock{}

// Config holds retry configuration
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	MaxTotalTimeout time.Duration
	Clock           Clock
}

// DefaultConfig returns a default retry configuration with 1 minute max timeout
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     10,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 60 * time.Second, // 1 minute max
	}
}

// StoreWriteConfig is the policy for single content-store writes:
// 3 attempts, waiting min(1s * 2^(n-1), 5s) before retry n.
func StoreWriteConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Delay returns the wait before the given retry (1-based), honoring the cap.
func (c Config) Delay(retry int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < retry; i++ {
		delay = time.Duration(float64(delay) * c.BackoffFactor)
		if c.MaxDelay > 0 && delay > c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

func (c Config) clock() Clock {
	if c.Clock == nil {
		return RealClock
	}
	return c.Clock
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do executes the given function with exponential backoff retry logic
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return DoIf(ctx, cfg, func(error) bool { return true }, fn)
}

// DoIf retries fn only while retryable reports true for the returned error.
// A non-retryable error is returned unchanged after the attempt that produced
// it; exhausting MaxAttempts returns an *ExhaustedError wrapping the last one.
func DoIf(ctx context.Context, cfg Config, retryable func(error) bool, fn func() error) error {
	return DoWithLogIf(ctx, cfg, retryable, fn, nil)
}

// DoWithLog executes the function with retry and logs each attempt
func DoWithLog(ctx context.Context, cfg Config, serviceName string, fn func() error, logFn func(attempt int, err error, nextDelay time.Duration)) error {
	err := DoWithLogIf(ctx, cfg, func(error) bool { return true }, fn, logFn)
	if err != nil {
		return fmt.Errorf("%s: %w", serviceName, err)
	}
	return nil
}

// DoWithLogIf is DoIf with a hook invoked before every wait.
func DoWithLogIf(ctx context.Context, cfg Config, retryable func(error) bool, fn func() error, logFn func(attempt int, err error, nextDelay time.Duration)) error {
	if cfg.MaxTotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxTotalTimeout)
		defer cancel()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	clock := cfg.clock()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w (last error: %v)", attempt-1, ctx.Err(), lastErr)
			}
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}

		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Delay(attempt)
		if logFn != nil {
			logFn(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted after %d attempts: %w (last error: %v)", attempt, ctx.Err(), lastErr)
		case <-clock.After(delay):
		}
	}

	return &ExhaustedError{Attempts: cfg.MaxAttempts, Last: lastErr}
}
