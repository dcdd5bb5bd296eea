// Package harness binds transaction isolation and the cleanup cascade to
// a test framework's hook points. Framework-agnostic: callers wire
// BeforeEach/AfterEach into whatever harness they use.
package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/flakewatch/internal/cleanup"
	"github.com/vietddude/flakewatch/internal/isolation"
)

// Hooks wraps each test in an isolation transaction, degrading to the
// cleanup cascade when isolation fails or is unavailable.
type Hooks struct {
	manager *isolation.Manager
	cleaner *cleanup.Cleaner
}

// New creates the hook pair.
func New(manager *isolation.Manager, cleaner *cleanup.Cleaner) *Hooks {
	return &Hooks{manager: manager, cleaner: cleaner}
}

// BeforeEach starts the test's isolation transaction. A nesting error
// here is a structural harness defect and fails the run immediately.
func (h *Hooks) BeforeEach(ctx context.Context, testName string) error {
	if _, err := h.manager.Start(ctx, testName); err != nil {
		return fmt.Errorf("failed to isolate test %q: %w", testName, err)
	}
	return nil
}

// AfterEach rolls the transaction back. When rollback fails or no
// transaction is open, the cleanup cascade restores the store instead.
func (h *Hooks) AfterEach(ctx context.Context) error {
	if h.manager.IsActive() {
		err := h.manager.RollbackCurrent()
		if err == nil {
			return nil
		}
		slog.Warn("Rollback failed, invoking cleanup cascade", "error", err)
	}

	if _, err := h.cleaner.Clean(ctx); err != nil {
		return fmt.Errorf("cleanup cascade failed: %w", err)
	}
	return nil
}

// Client exposes the current transaction handle for the test body.
func (h *Hooks) Client() (isolation.Tx, error) {
	return h.manager.Client()
}
