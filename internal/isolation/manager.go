// Package isolation gives each test its own database transaction and
// rolls it back afterwards, so no state leaks between tests.
package isolation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/flakewatch/internal/infra/storage/postgres"
	"github.com/vietddude/flakewatch/internal/metrics"
	"github.com/vietddude/flakewatch/internal/retry"
)

// ErrNoActiveTransaction is returned when a client is requested while no
// transaction is open.
var ErrNoActiveTransaction = errors.New("no active transaction")

// NestingError reports a structural defect in the test harness (usually a
// missing teardown). It is never retried.
type NestingError struct {
	Limit       int
	CurrentID   string
	ActiveCount int
}

func (e *NestingError) Error() string {
	return fmt.Sprintf(
		"transaction nesting limit %d exceeded (current transaction %s, %d active): check for missing teardown",
		e.Limit, e.CurrentID, e.ActiveCount,
	)
}

// Tx is the slice of a database transaction the manager needs. Satisfied
// by *sqlx.Tx.
type Tx interface {
	postgres.Querier
	Rollback() error
}

// Store starts transactions against the relational store.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Config holds isolation manager settings.
type Config struct {
	MaxNestingLevel int           `yaml:"max_nesting_level"`
	Timeout         time.Duration `yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.MaxNestingLevel <= 0 {
		c.MaxNestingLevel = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Manager owns the single current-transaction slot. It is designed for
// sequential test execution; parallel workers need one Manager each.
type Manager struct {
	store Store
	cfg   Config

	mu      sync.Mutex
	active  map[string]*TxContext
	current *TxContext
}

// NewManager creates a Manager over a postgres pool.
func NewManager(db *postgres.DB, cfg Config) *Manager {
	return NewManagerWithStore(sqlStore{db: db}, cfg)
}

// NewManagerWithStore creates a Manager over any Store implementation.
func NewManagerWithStore(store Store, cfg Config) *Manager {
	return &Manager{
		store:  store,
		cfg:    cfg.withDefaults(),
		active: make(map[string]*TxContext),
	}
}

type sqlStore struct {
	db *postgres.DB
}

func (s sqlStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Start opens a new transaction and registers it as current. The nesting
// level is the current context's level plus one (zero when none).
//
// The transaction stays open until Rollback is explicitly requested; its
// lifetime is bound to an internal timeout context detached from the
// caller's, so exceeding the configured timeout surfaces as a rejection
// on the transaction itself.
func (m *Manager) Start(ctx context.Context, testName string) (*TxContext, error) {
	m.mu.Lock()

	level := 0
	if m.current != nil {
		level = m.current.NestingLevel + 1
	}
	if level >= m.cfg.MaxNestingLevel {
		err := &NestingError{
			Limit:       m.cfg.MaxNestingLevel,
			CurrentID:   m.current.ID,
			ActiveCount: len(m.active),
		}
		m.mu.Unlock()
		return nil, retry.Terminal(err)
	}
	m.mu.Unlock()

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Timeout)
	tx, err := m.store.Begin(txCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	tc := &TxContext{
		ID:           uuid.New().String(),
		TestName:     testName,
		NestingLevel: level,
		StartTime:    time.Now(),
		state:        stateOpen,
		tx:           tx,
		cancel:       cancel,
	}

	m.mu.Lock()
	m.active[tc.ID] = tc
	m.current = tc
	metrics.ActiveTransactions.Set(float64(len(m.active)))
	m.mu.Unlock()

	slog.Debug("Transaction started",
		"id", tc.ID,
		"test", testName,
		"nesting_level", level,
	)
	return tc, nil
}

// Rollback discards the transaction's writes and removes it from the
// active set. Idempotent: unknown or already-rolled-back ids are a no-op.
func (m *Manager) Rollback(id string) error {
	m.mu.Lock()
	tc, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		slog.Debug("Rollback for unknown transaction", "id", id)
		return nil
	}

	delete(m.active, id)
	if m.current != nil && m.current.ID == id {
		m.current = nil
	}
	metrics.ActiveTransactions.Set(float64(len(m.active)))
	m.mu.Unlock()

	tc.state = stateRolledBack
	tc.cancel()

	if err := tc.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction %s: %w", id, err)
	}

	slog.Debug("Transaction rolled back", "id", id, "test", tc.TestName)
	return nil
}

// RollbackCurrent rolls back the current transaction, if any.
func (m *Manager) RollbackCurrent() error {
	m.mu.Lock()
	tc := m.current
	m.mu.Unlock()

	if tc == nil {
		return ErrNoActiveTransaction
	}
	return m.Rollback(tc.ID)
}

// Client returns the scoped handle of the current transaction for the
// test body to perform isolated operations.
func (m *Manager) Client() (Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, fmt.Errorf("%w (%d active contexts)", ErrNoActiveTransaction, len(m.active))
	}
	return m.current.tx, nil
}

// IsActive reports whether a current transaction is open.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Stats describes the active transaction set. Diagnostic only.
type Stats struct {
	ActiveCount int
	CurrentID   string
	AverageAge  time.Duration
}

// GetStats returns diagnostics over the active contexts.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{ActiveCount: len(m.active)}
	if m.current != nil {
		st.CurrentID = m.current.ID
	}
	if len(m.active) > 0 {
		var total time.Duration
		for _, tc := range m.active {
			total += tc.Age()
		}
		st.AverageAge = total / time.Duration(len(m.active))
	}
	return st
}

// ForceCleanupStale rolls back every active transaction, logging rather
// than propagating per-context errors, and clears the registry. Emergency
// recovery path for crashed or aborted test runs.
func (m *Manager) ForceCleanupStale() {
	m.mu.Lock()
	stale := make([]*TxContext, 0, len(m.active))
	for _, tc := range m.active {
		stale = append(stale, tc)
	}
	m.active = make(map[string]*TxContext)
	m.current = nil
	metrics.ActiveTransactions.Set(0)
	m.mu.Unlock()

	for _, tc := range stale {
		tc.state = stateRolledBack
		tc.cancel()
		if err := tc.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("Failed to roll back stale transaction",
				"id", tc.ID,
				"test", tc.TestName,
				"error", err,
			)
		}
	}

	if len(stale) > 0 {
		slog.Warn("Force-cleaned stale transactions", "count", len(stale))
	}
}

// StaleTransaction flags a context open for longer than twice the
// configured timeout.
type StaleTransaction struct {
	ID       string
	TestName string
	Age      time.Duration
}

// CheckStale reports suspiciously old contexts. It does not remediate.
func (m *Manager) CheckStale() []StaleTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := 2 * m.cfg.Timeout
	var stale []StaleTransaction
	for _, tc := range m.active {
		if age := tc.Age(); age > threshold {
			stale = append(stale, StaleTransaction{ID: tc.ID, TestName: tc.TestName, Age: age})
		}
	}
	return stale
}
