// Package retry runs fallible operations under a bounded exponential backoff
// policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/danielolaszy/relnotes/internal/logging"
)

// Policy describes how an operation is retried.
//
// Delays grow as InitialDelay * Multiplier^(attempt-1) with no jitter.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64

	// Fatal errors are returned immediately without another attempt.
	Fatal func(error) bool
	// Retryable decides whether a non-fatal error is worth another attempt.
	// A nil Retryable retries every non-fatal error.
	Retryable func(error) bool

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Logger defaults to the application logger.
	Logger *slog.Logger
}

// DefaultPolicy returns three attempts starting at one second and doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
	}
}

// Delay returns the wait before the attempt following attempt.
func (p Policy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1)))
}

// Matching returns a classifier that matches any of targets via errors.Is.
func Matching(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// Do calls fn until it succeeds, fails fatally, ctx ends, or the attempt
// budget is spent. An error from fn is never fatal by its identity alone: a
// timeout inside fn is retried while ctx itself is still live. The last error is returned unchanged so callers can match it.
func Do[T any](ctx context.Context, p Policy, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	log := p.Logger
	if log == nil {
		log = logging.GetLogger()
	}
	log = log.With("operation", name)

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		elapsed := time.Since(start)
		if err == nil {
			log.Debug("attempt succeeded", "attempt", attempt, "elapsed", elapsed)
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			log.Warn("context done, not retrying", "attempt", attempt, "elapsed", elapsed, "error", err)
			return zero, fmt.Errorf("%s: retry interrupted after attempt %d: %w: %w", name, attempt, ctx.Err(), err)
		}
		if p.Fatal != nil && p.Fatal(err) {
			log.Error("fatal error, not retrying", "attempt", attempt, "elapsed", elapsed, "error", err)
			return zero, err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			log.Warn("error is not retryable", "attempt", attempt, "elapsed", elapsed, "error", err)
			return zero, err
		}
		if attempt == attempts {
			log.Error("attempts exhausted", "attempt", attempt, "max_attempts", attempts, "elapsed", elapsed, "error", err)
			break
		}

		delay := p.Delay(attempt)
		log.Warn("attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"elapsed", elapsed,
			"delay", delay,
			"error", err)

		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: retry interrupted after attempt %d: %w", name, attempt, err)
		}
	}

	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
