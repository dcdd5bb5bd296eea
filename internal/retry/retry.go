// Package retry wraps fallible operations with bounded, classified,
// exponentially backed-off retries.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/flakewatch/internal/metrics"
)

// MaxAttemptsCeiling is a safety invariant, not a tunable default. No
// options object can raise the attempt count above it.
const MaxAttemptsCeiling = 3

// Options defines retry behavior for a single call.
type Options struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	BackoffMultiple float64
	MaxDelay        time.Duration

	// ShouldRetry is consulted in addition to the built-in classifier:
	// a failure is retried when either says yes.
	ShouldRetry func(err error, attempt int) bool
}

// DefaultOptions provides sensible defaults.
var DefaultOptions = Options{
	MaxAttempts:     MaxAttemptsCeiling,
	InitialDelay:    100 * time.Millisecond,
	BackoffMultiple: 2.0,
	MaxDelay:        5 * time.Second,
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultOptions.MaxAttempts
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultOptions.InitialDelay
	}
	if o.BackoffMultiple <= 1 {
		o.BackoffMultiple = DefaultOptions.BackoffMultiple
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultOptions.MaxDelay
	}
	return o
}

func (o Options) effectiveMaxAttempts() int {
	if o.MaxAttempts > MaxAttemptsCeiling {
		return MaxAttemptsCeiling
	}
	return o.MaxAttempts
}

// Do executes op with retries. The final error is returned unmodified so
// callers can keep pattern-matching on it.
func Do(ctx context.Context, name string, op func(context.Context) error, opts Options) error {
	_, err := DoValue(ctx, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts)
	return err
}

// DoValue executes op with retries and returns its result.
//
// Attempts are strictly sequential. On failure the next attempt starts
// only after the backoff delay: InitialDelay multiplied by BackoffMultiple
// after each failure, capped at MaxDelay.
func DoValue[T any](
	ctx context.Context,
	name string,
	op func(context.Context) (T, error),
	opts Options,
) (T, error) {
	opts = opts.withDefaults()
	maxAttempts := opts.effectiveMaxAttempts()
	delay := opts.InitialDelay

	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		metrics.RetryAttempts.WithLabelValues(name).Inc()
		DefaultStats.recordAttempt(name)

		result, err := op(ctx)
		if err == nil {
			DefaultStats.recordSuccess(name, attempt)
			return result, nil
		}
		lastErr = err

		if attempt >= maxAttempts || !retryable(err, attempt, opts) {
			break
		}

		slog.Debug("Retrying operation",
			"operation", name,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			DefaultStats.recordFailure(name)
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * opts.BackoffMultiple)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	DefaultStats.recordFailure(name)
	metrics.RetryExhausted.WithLabelValues(name).Inc()
	return zero, lastErr
}

func retryable(err error, attempt int, opts Options) bool {
	if KindOf(err) == KindTerminal {
		return false
	}
	if opts.ShouldRetry != nil && opts.ShouldRetry(err, attempt) {
		return true
	}
	return IsTransient(err)
}
