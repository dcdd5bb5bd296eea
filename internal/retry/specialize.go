package retry

import (
	"context"
	"time"
)

// withClassifier ORs a domain classifier into the options' retry decision.
func withClassifier(opts Options, classify func(error) bool) Options {
	user := opts.ShouldRetry
	opts.ShouldRetry = func(err error, attempt int) bool {
		if user != nil && user(err, attempt) {
			return true
		}
		return classify(err)
	}
	return opts
}

// DoDatabase retries a database operation, additionally treating lock
// contention, deadlocks and busy errors as transient.
func DoDatabase(ctx context.Context, name string, op func(context.Context) error, opts Options) error {
	return Do(ctx, name, op, withClassifier(opts, isTransientDatabase))
}

// DoDatabaseValue is DoDatabase for operations that return a result.
func DoDatabaseValue[T any](
	ctx context.Context,
	name string,
	op func(context.Context) (T, error),
	opts Options,
) (T, error) {
	return DoValue(ctx, name, op, withClassifier(opts, isTransientDatabase))
}

// DoNetwork retries a network request with a longer base delay, treating
// transport failures, 5xx and 429 responses as transient.
func DoNetwork(ctx context.Context, name string, op func(context.Context) error, opts Options) error {
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 500 * time.Millisecond
	}
	return Do(ctx, name, op, withClassifier(opts, isTransientNetwork))
}

// DoBrowser retries a UI action, additionally treating element timing and
// visibility errors as transient.
func DoBrowser(ctx context.Context, name string, op func(context.Context) error, opts Options) error {
	return Do(ctx, name, op, withClassifier(opts, isTransientBrowser))
}
