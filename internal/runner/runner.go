// Package runner drives repeated suite execution and records one
// TestResult per run for the flakiness analyzer.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/flakewatch/internal/core/domain"
	"github.com/vietddude/flakewatch/internal/flaky"
	"github.com/vietddude/flakewatch/internal/retry"
)

// Config holds suite runner settings.
type Config struct {
	// Command is the suite command; the suite name is appended as the
	// final argument.
	Command string

	// Timeout bounds a single run.
	Timeout time.Duration

	// Retry wraps each run with transient-failure retries.
	Retry bool
}

func (c Config) withDefaults() Config {
	if c.Command == "" {
		c.Command = "npm test --"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
	return c
}

// Runner executes a suite N times and appends outcomes to the store.
type Runner struct {
	cfg   Config
	store *flaky.Store
}

// New creates a Runner.
func New(cfg Config, store *flaky.Store) *Runner {
	return &Runner{cfg: cfg.withDefaults(), store: store}
}

// Run executes the suite the requested number of times. Failures are
// recorded, not propagated: the run log is advisory input for analysis.
func (r *Runner) Run(ctx context.Context, suite string, runs int) ([]domain.TestResult, error) {
	if runs <= 0 {
		runs = 5
	}
	batch := uuid.New().String()[:8]

	results := make([]domain.TestResult, 0, runs)
	for i := 1; i <= runs; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := r.runOnce(ctx, suite, fmt.Sprintf("%s-%d", batch, i))
		results = append(results, result)

		slog.Info("Suite run finished",
			"suite", suite,
			"run", i,
			"of", runs,
			"status", result.Status,
			"duration_ms", result.DurationMs,
		)

		if err := r.store.Append(result); err != nil {
			return results, fmt.Errorf("failed to record run result: %w", err)
		}
	}
	return results, nil
}

func (r *Runner) runOnce(ctx context.Context, suite, runID string) domain.TestResult {
	start := time.Now()

	op := func(ctx context.Context) error {
		return r.execute(ctx, suite)
	}

	var err error
	if r.cfg.Retry {
		err = retry.Do(ctx, "runner."+suite, op, retry.Options{})
	} else {
		err = op(ctx)
	}

	status := domain.StatusPassed
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = domain.StatusTimeout
	case err != nil:
		status = domain.StatusFailed
	}

	return domain.TestResult{
		TestName:   suite,
		TestPath:   suite,
		Suite:      suite,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  start,
		RunID:      runID,
	}
}

func (r *Runner) execute(ctx context.Context, suite string) error {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	parts := strings.Fields(r.cfg.Command)
	args := append(parts[1:], suite)
	cmd := exec.CommandContext(runCtx, parts[0], args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return context.DeadlineExceeded
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[:500]
		}
		return fmt.Errorf("suite command failed: %w: %s", err, msg)
	}
	return nil
}
