package domain

import "time"

// CleanupStrategy identifies one way of returning the store to a clean state.
type CleanupStrategy string

const (
	// StrategyTransaction rolls back the active isolation transaction.
	// Fastest, no writes ever committed.
	StrategyTransaction CleanupStrategy = "transaction"

	// StrategyOptimized deletes domain tables in dependency order.
	StrategyOptimized CleanupStrategy = "optimized"

	// StrategyFullReset wipes and re-migrates the schema. Slowest, most certain.
	StrategyFullReset CleanupStrategy = "full-reset"
)

// StrategyOrder is the fixed cascade priority, cheapest first.
var StrategyOrder = []CleanupStrategy{
	StrategyTransaction,
	StrategyOptimized,
	StrategyFullReset,
}

// CleanupResult records one cleanup attempt outcome. Append-only, never
// mutated after creation.
type CleanupResult struct {
	Strategy        CleanupStrategy `json:"strategy"`
	DurationMs      int64           `json:"duration_ms"`
	Success         bool            `json:"success"`
	RecordsAffected int64           `json:"records_affected"`
	Error           string          `json:"error,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}
