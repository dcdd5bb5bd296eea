package domain

import "time"

// TestStats aggregates the recorded outcomes of a single test.
// Derived from the result log, never persisted independently.
type TestStats struct {
	TestName       string    `json:"test_name"`
	TestPath       string    `json:"test_path"`
	Suite          string    `json:"suite"`
	TotalRuns      int       `json:"total_runs"`
	Passed         int       `json:"passed"`
	Failed         int       `json:"failed"`
	Skipped        int       `json:"skipped"`
	Timeouts       int       `json:"timeouts"`
	SuccessRate    float64   `json:"success_rate"`
	FlakyScore     float64   `json:"flaky_score"`
	LongestFailRun int       `json:"longest_fail_run"`
	LongestPassRun int       `json:"longest_pass_run"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}

// Key returns the identity key for the test these stats describe.
func (s TestStats) Key() string {
	return s.TestPath + "::" + s.TestName
}

// RiskTier buckets a flaky test by score.
type RiskTier string

const (
	RiskHigh   RiskTier = "high"
	RiskMedium RiskTier = "medium"
	RiskLow    RiskTier = "low"
)

// FlakyTest is a test flagged as non-deterministic.
type FlakyTest struct {
	TestStats
	Risk RiskTier `json:"risk"`
}
