// Package cleanup restores the store to a known-clean state between
// tests, falling back through progressively slower but more certain
// strategies.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/flakewatch/internal/core/domain"
	"github.com/vietddude/flakewatch/internal/metrics"
	"github.com/vietddude/flakewatch/internal/retry"
)

// ErrIsolationInactive is returned by the transaction strategy when no
// isolation transaction is open to roll back.
var ErrIsolationInactive = errors.New("transaction isolation inactive")

// IsolationManager is the slice of the isolation manager the cascade
// needs for its first strategy.
type IsolationManager interface {
	IsActive() bool
	RollbackCurrent() error
}

// Capabilities are the externally supplied cleanup operations. The
// cascade only orchestrates when and in what order they run.
type Capabilities struct {
	// CountRecords counts all domain-table rows, taken before a
	// destructive strategy runs.
	CountRecords func(ctx context.Context) (int64, error)

	// Verify queries the expected-empty state after a destructive
	// strategy. A failure triggers a retry of that strategy.
	Verify func(ctx context.Context) error

	// CleanOptimized deletes domain tables in dependency order.
	CleanOptimized func(ctx context.Context) error

	// Reset wipes and rebuilds the schema.
	Reset func(ctx context.Context) error
}

// ResetLock serializes the destructive full-reset strategy across
// workers sharing one physical store. Optional.
type ResetLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Options holds cascade settings. Zero values mean the documented
// defaults: 3 retries per strategy, fallback on, verification on.
type Options struct {
	MaxRetries      int  `yaml:"max_retries"`
	DisableFallback bool `yaml:"disable_fallback"`
	SkipVerify      bool `yaml:"skip_verify"`
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	return o
}

// Cleaner runs the cleanup cascade.
type Cleaner struct {
	manager IsolationManager
	caps    Capabilities
	lock    ResetLock
	opts    Options

	mu      sync.Mutex
	history []domain.CleanupResult
	current domain.CleanupStrategy
}

// NewCleaner creates a Cleaner. lock may be nil when resets need no
// cross-worker coordination.
func NewCleaner(manager IsolationManager, caps Capabilities, lock ResetLock, opts Options) *Cleaner {
	return &Cleaner{
		manager: manager,
		caps:    caps,
		lock:    lock,
		opts:    opts.withDefaults(),
	}
}

// Clean tries each strategy in priority order and returns the first
// success. On a strategy's exhaustion the cascade proceeds to the next
// unless fallback is disabled; when every strategy is exhausted, the last
// observed error is returned.
func (c *Cleaner) Clean(ctx context.Context) (domain.CleanupResult, error) {
	var lastResult domain.CleanupResult
	var lastErr error

	for _, strategy := range domain.StrategyOrder {
		result, err := c.runStrategy(ctx, strategy)
		if err == nil {
			return result, nil
		}

		lastResult = result
		lastErr = err

		if c.opts.DisableFallback {
			return lastResult, lastErr
		}
		slog.Warn("Cleanup strategy exhausted, falling back",
			"strategy", strategy,
			"error", err,
		)
	}

	return lastResult, lastErr
}

// runStrategy executes one strategy under the retry engine and records
// its final outcome in the history.
func (c *Cleaner) runStrategy(ctx context.Context, strategy domain.CleanupStrategy) (domain.CleanupResult, error) {
	start := time.Now()

	var affected int64
	if strategy != domain.StrategyTransaction && c.caps.CountRecords != nil {
		n, err := c.caps.CountRecords(ctx)
		if err != nil {
			slog.Debug("Failed to pre-count records", "strategy", strategy, "error", err)
		} else {
			affected = n
		}
	}

	// Delays of 50ms then 100ms between same-strategy attempts.
	err := retry.Do(ctx, "cleanup."+string(strategy), func(ctx context.Context) error {
		return c.attempt(ctx, strategy)
	}, retry.Options{
		MaxAttempts:     c.opts.MaxRetries,
		InitialDelay:    50 * time.Millisecond,
		BackoffMultiple: 2.0,
		ShouldRetry:     func(error, int) bool { return true },
	})

	result := domain.CleanupResult{
		Strategy:   strategy,
		DurationMs: time.Since(start).Milliseconds(),
		Success:    err == nil,
		Timestamp:  start,
	}
	if err != nil {
		result.Error = err.Error()
	} else if strategy != domain.StrategyTransaction {
		result.RecordsAffected = affected
	}

	c.record(result)
	metrics.CleanupDuration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.CleanupRuns.WithLabelValues(string(strategy), outcome).Inc()

	return result, err
}

func (c *Cleaner) attempt(ctx context.Context, strategy domain.CleanupStrategy) error {
	switch strategy {
	case domain.StrategyTransaction:
		if !c.manager.IsActive() {
			// Structural, pointless to retry.
			return retry.Terminal(ErrIsolationInactive)
		}
		return c.manager.RollbackCurrent()

	case domain.StrategyOptimized:
		if c.caps.CleanOptimized == nil {
			return retry.Terminal(fmt.Errorf("optimized cleanup capability not configured"))
		}
		if err := c.caps.CleanOptimized(ctx); err != nil {
			return err
		}
		return c.verify(ctx)

	case domain.StrategyFullReset:
		if c.caps.Reset == nil {
			return retry.Terminal(fmt.Errorf("reset capability not configured"))
		}
		if c.lock != nil {
			release, err := c.lock.Acquire(ctx)
			if err != nil {
				return fmt.Errorf("failed to acquire reset lock: %w", err)
			}
			defer release()
		}
		if err := c.caps.Reset(ctx); err != nil {
			return err
		}
		return c.verify(ctx)
	}

	return fmt.Errorf("unknown cleanup strategy %q", strategy)
}

func (c *Cleaner) verify(ctx context.Context) error {
	if c.opts.SkipVerify || c.caps.Verify == nil {
		return nil
	}
	return c.caps.Verify(ctx)
}

func (c *Cleaner) record(result domain.CleanupResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, result)
	if result.Success {
		c.current = result.Strategy
	}
}

// History returns a copy of the append-only result history.
func (c *Cleaner) History() []domain.CleanupResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.CleanupResult, len(c.history))
	copy(out, c.history)
	return out
}

// PreferredStrategy returns the strategy that most recently succeeded,
// used for diagnostics and preferred-strategy reporting.
func (c *Cleaner) PreferredStrategy() domain.CleanupStrategy {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == "" {
		return domain.StrategyTransaction
	}
	return c.current
}
