package domain

import "time"

// TestStatus is the outcome of a single test execution.
type TestStatus string

const (
	StatusPassed  TestStatus = "passed"
	StatusFailed  TestStatus = "failed"
	StatusSkipped TestStatus = "skipped"
	StatusTimeout TestStatus = "timeout"
)

// TestResult records one execution of one test.
type TestResult struct {
	TestName   string     `json:"test_name"`
	TestPath   string     `json:"test_path"`
	Suite      string     `json:"suite"`
	Status     TestStatus `json:"status"`
	DurationMs int64      `json:"duration_ms"`
	Timestamp  time.Time  `json:"timestamp"`
	RunID      string     `json:"run_id"`
}

// Key returns the identity key used to group results for the same test.
func (r TestResult) Key() string {
	return r.TestPath + "::" + r.TestName
}
