package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vietddude/flakewatch/internal/core/domain"
)

// =============================================================================
// Mocks
// =============================================================================

type mockManager struct {
	mu          sync.Mutex
	active      bool
	rollbackErr error
	rollbacks   int
}

func (m *mockManager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *mockManager) RollbackCurrent() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks++
	if m.rollbackErr != nil {
		return m.rollbackErr
	}
	m.active = false
	return nil
}

type mockLock struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (l *mockLock) Acquire(ctx context.Context) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, nil
}

func countHistory(history []domain.CleanupResult, strategy domain.CleanupStrategy, success bool) int {
	n := 0
	for _, r := range history {
		if r.Strategy == strategy && r.Success == success {
			n++
		}
	}
	return n
}

// =============================================================================
// Cascade behavior
// =============================================================================

func TestClean_TransactionStrategyWins(t *testing.T) {
	manager := &mockManager{active: true}
	cleaner := NewCleaner(manager, Capabilities{
		CleanOptimized: func(ctx context.Context) error {
			t.Error("optimized must not run after a transaction success")
			return nil
		},
	}, nil, Options{})

	result, err := cleaner.Clean(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Strategy != domain.StrategyTransaction {
		t.Errorf("expected transaction strategy, got %s", result.Strategy)
	}
	if !result.Success {
		t.Error("expected success recorded")
	}
	if result.RecordsAffected != 0 {
		t.Errorf("transaction rollback leaves no visible writes, got %d records", result.RecordsAffected)
	}
	if manager.rollbacks != 1 {
		t.Errorf("expected a single rollback, got %d", manager.rollbacks)
	}
}

func TestClean_InactiveIsolationFallsBackWithoutRetries(t *testing.T) {
	manager := &mockManager{active: false}
	optimizedCalls := 0
	cleaner := NewCleaner(manager, Capabilities{
		CleanOptimized: func(ctx context.Context) error {
			optimizedCalls++
			return nil
		},
	}, nil, Options{SkipVerify: true})

	result, err := cleaner.Clean(context.Background())
	if err != nil {
		t.Fatalf("expected success via fallback, got %v", err)
	}
	if result.Strategy != domain.StrategyOptimized {
		t.Errorf("expected optimized strategy, got %s", result.Strategy)
	}
	// Inactive isolation is structural: the transaction strategy must
	// fail on its first attempt, without side effects.
	if manager.rollbacks != 0 {
		t.Errorf("inactive isolation must cause no rollback attempts, got %d", manager.rollbacks)
	}
	if optimizedCalls != 1 {
		t.Errorf("expected 1 optimized attempt, got %d", optimizedCalls)
	}
}

func TestClean_TransactionExhaustedThenOptimizedSecondAttempt(t *testing.T) {
	manager := &mockManager{active: true, rollbackErr: errors.New("rollback request failed")}

	optimizedCalls := 0
	cleaner := NewCleaner(manager, Capabilities{
		CountRecords: func(ctx context.Context) (int64, error) { return 42, nil },
		CleanOptimized: func(ctx context.Context) error {
			optimizedCalls++
			if optimizedCalls < 2 {
				return errors.New("delete blocked by open cursor")
			}
			return nil
		},
	}, nil, Options{SkipVerify: true})

	result, err := cleaner.Clean(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Strategy != domain.StrategyOptimized || !result.Success {
		t.Fatalf("expected successful optimized result, got %+v", result)
	}
	if result.RecordsAffected != 42 {
		t.Errorf("expected pre-counted 42 records, got %d", result.RecordsAffected)
	}

	if manager.rollbacks != 3 {
		t.Errorf("transaction strategy should use all 3 permitted attempts, got %d", manager.rollbacks)
	}
	if optimizedCalls != 2 {
		t.Errorf("expected optimized to succeed on its 2nd attempt, got %d", optimizedCalls)
	}

	history := cleaner.History()
	if n := countHistory(history, domain.StrategyTransaction, false); n != 1 {
		t.Errorf("expected exactly one failed transaction entry, got %d", n)
	}
	if n := countHistory(history, domain.StrategyOptimized, true); n != 1 {
		t.Errorf("expected exactly one successful optimized entry, got %d", n)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(history))
	}
}

func TestClean_FallbackDisabledAbortsImmediately(t *testing.T) {
	manager := &mockManager{active: false}
	optimizedCalls := 0
	cleaner := NewCleaner(manager, Capabilities{
		CleanOptimized: func(ctx context.Context) error {
			optimizedCalls++
			return nil
		},
	}, nil, Options{DisableFallback: true})

	_, err := cleaner.Clean(context.Background())
	if !errors.Is(err, ErrIsolationInactive) {
		t.Fatalf("expected ErrIsolationInactive, got %v", err)
	}
	if optimizedCalls != 0 {
		t.Error("fallback disabled: optimized must not run")
	}
}

func TestClean_AllStrategiesExhaustedThrowsLastError(t *testing.T) {
	manager := &mockManager{active: false}
	resetErr := errors.New("migrations directory missing")
	cleaner := NewCleaner(manager, Capabilities{
		CleanOptimized: func(ctx context.Context) error { return errors.New("optimized failed") },
		Reset:          func(ctx context.Context) error { return resetErr },
	}, nil, Options{SkipVerify: true})

	result, err := cleaner.Clean(context.Background())
	if !errors.Is(err, resetErr) {
		t.Fatalf("expected the last observed error, got %v", err)
	}
	if result.Success {
		t.Error("result should record the failure")
	}
	if result.Strategy != domain.StrategyFullReset {
		t.Errorf("expected the last strategy recorded, got %s", result.Strategy)
	}
}

func TestClean_VerifyFailureTriggersRetry(t *testing.T) {
	manager := &mockManager{active: false}

	optimizedCalls, verifyCalls := 0, 0
	cleaner := NewCleaner(manager, Capabilities{
		CleanOptimized: func(ctx context.Context) error {
			optimizedCalls++
			return nil
		},
		Verify: func(ctx context.Context) error {
			verifyCalls++
			if verifyCalls < 2 {
				return errors.New("cleanup verification failed, tables not empty: runs (3 rows)")
			}
			return nil
		},
	}, nil, Options{})

	result, err := cleaner.Clean(context.Background())
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if result.Strategy != domain.StrategyOptimized {
		t.Errorf("expected optimized, got %s", result.Strategy)
	}
	if optimizedCalls != 2 || verifyCalls != 2 {
		t.Errorf("expected verification to drive a retry, got clean=%d verify=%d", optimizedCalls, verifyCalls)
	}
}

func TestClean_ResetHoldsLock(t *testing.T) {
	manager := &mockManager{active: false}
	lock := &mockLock{}
	cleaner := NewCleaner(manager, Capabilities{
		CleanOptimized: func(ctx context.Context) error { return errors.New("optimized failed") },
		Reset:          func(ctx context.Context) error { return nil },
	}, lock, Options{SkipVerify: true})

	result, err := cleaner.Clean(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Strategy != domain.StrategyFullReset {
		t.Fatalf("expected full-reset, got %s", result.Strategy)
	}
	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("expected lock acquired and released once, got %d/%d", lock.acquired, lock.released)
	}
}

// =============================================================================
// Stats
// =============================================================================

func TestGetStats_PreferredStrategy(t *testing.T) {
	manager := &mockManager{active: false}
	cleaner := NewCleaner(manager, Capabilities{
		CleanOptimized: func(ctx context.Context) error { return nil },
	}, nil, Options{SkipVerify: true})

	for i := 0; i < 3; i++ {
		if _, err := cleaner.Clean(context.Background()); err != nil {
			t.Fatalf("clean %d failed: %v", i, err)
		}
	}

	if got := cleaner.PreferredStrategy(); got != domain.StrategyOptimized {
		t.Errorf("expected optimized preferred, got %s", got)
	}

	stats := cleaner.GetStats()
	if stats.MostReliable != domain.StrategyOptimized {
		t.Errorf("expected optimized most reliable, got %s", stats.MostReliable)
	}
	if stats.StrategyUsage[domain.StrategyTransaction] != 3 {
		t.Errorf("expected 3 transaction attempts recorded, got %d", stats.StrategyUsage[domain.StrategyTransaction])
	}
	if stats.Successes != 3 {
		t.Errorf("expected 3 successes, got %d", stats.Successes)
	}
	if stats.SuccessRate != 0.5 {
		t.Errorf("3 failures and 3 successes should give 0.5, got %f", stats.SuccessRate)
	}
}
