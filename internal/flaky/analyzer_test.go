package flaky

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/vietddude/flakewatch/internal/core/domain"
)

func makeResults(name string, statuses ...domain.TestStatus) []domain.TestResult {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	results := make([]domain.TestResult, len(statuses))
	for i, status := range statuses {
		results[i] = domain.TestResult{
			TestName:  name,
			TestPath:  "suite/" + name + ".spec",
			Suite:     "suite",
			Status:    status,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			RunID:     fmt.Sprintf("run-%d", i),
		}
	}
	return results
}

func statsFor(t *testing.T, results []domain.TestResult) domain.TestStats {
	t.Helper()
	all := Analyze(results)
	if len(all) != 1 {
		t.Fatalf("expected a single test, got %d", len(all))
	}
	return all[0]
}

// =============================================================================
// Scoring
// =============================================================================

func TestScore_FiftyPercentIsMaximal(t *testing.T) {
	st := statsFor(t, makeResults("coin-flip",
		domain.StatusPassed, domain.StatusFailed,
		domain.StatusPassed, domain.StatusFailed,
	))

	if st.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5, got %f", st.SuccessRate)
	}
	if st.FlakyScore != 1.0 {
		t.Errorf("expected maximal score 1.0, got %f", st.FlakyScore)
	}
	if !IsFlaky(st) {
		t.Error("expected flaky")
	}
}

func TestScore_AlwaysPassingDampened(t *testing.T) {
	st := statsFor(t, makeResults("steady",
		domain.StatusPassed, domain.StatusPassed, domain.StatusPassed,
		domain.StatusPassed, domain.StatusPassed,
	))

	if st.FlakyScore != 0 {
		t.Errorf("a perfectly passing test scores 0, got %f", st.FlakyScore)
	}
	if IsFlaky(st) {
		t.Error("expected not flaky")
	}
}

func TestScore_InsufficientEvidence(t *testing.T) {
	st := statsFor(t, makeResults("new-test", domain.StatusPassed, domain.StatusFailed))
	if st.FlakyScore != 0 {
		t.Errorf("fewer than 3 runs must score exactly 0, got %f", st.FlakyScore)
	}
}

func TestScore_TimeoutFloor(t *testing.T) {
	// 9 passes + 1 timeout: success rate 0.9, base score 0.2, floored to
	// 0.4 by the timeout adjustment.
	statuses := make([]domain.TestStatus, 10)
	for i := range statuses {
		statuses[i] = domain.StatusPassed
	}
	statuses[4] = domain.StatusTimeout

	st := statsFor(t, makeResults("slow", statuses...))
	if st.SuccessRate != 0.9 {
		t.Fatalf("expected success rate 0.9, got %f", st.SuccessRate)
	}
	if st.FlakyScore != 0.4 {
		t.Errorf("expected timeout floor 0.4, got %f", st.FlakyScore)
	}
	if !IsFlaky(st) {
		t.Error("timeouts are inherently suspect, expected flaky")
	}
}

func TestScore_NearAlwaysFailingIsBrokenNotFlaky(t *testing.T) {
	// 1 pass in 10: success rate 0.1, base 0.2, halved to 0.1.
	statuses := make([]domain.TestStatus, 10)
	for i := range statuses {
		statuses[i] = domain.StatusFailed
	}
	statuses[0] = domain.StatusPassed

	st := statsFor(t, makeResults("broken", statuses...))
	if math.Abs(st.FlakyScore-0.1) > 1e-9 {
		t.Errorf("expected dampened score 0.1, got %f", st.FlakyScore)
	}
	if IsFlaky(st) {
		t.Error("broken tests are not flagged as flaky")
	}
}

func TestScore_EndToEndTwoFailuresInTen(t *testing.T) {
	// Fails on runs 3 and 7, passes otherwise: success rate 0.8, base
	// 1 - 2*|0.5-0.8| = 0.4, no dampening applies.
	statuses := make([]domain.TestStatus, 10)
	for i := range statuses {
		statuses[i] = domain.StatusPassed
	}
	statuses[2] = domain.StatusFailed
	statuses[6] = domain.StatusFailed

	st := statsFor(t, makeResults("intermittent", statuses...))
	if st.SuccessRate != 0.8 {
		t.Fatalf("expected success rate 0.8, got %f", st.SuccessRate)
	}
	if math.Abs(st.FlakyScore-0.4) > 1e-9 {
		t.Errorf("expected score 0.4, got %f", st.FlakyScore)
	}
	if !IsFlaky(st) {
		t.Error("0.4 > 0.3, expected flaky")
	}
}

// =============================================================================
// Streaks and grouping
// =============================================================================

func TestStreaks(t *testing.T) {
	st := statsFor(t, makeResults("streaky",
		domain.StatusPassed, domain.StatusPassed, domain.StatusPassed,
		domain.StatusFailed, domain.StatusTimeout, domain.StatusFailed,
		domain.StatusPassed,
	))

	if st.LongestFailRun != 3 {
		t.Errorf("timeouts extend the failure streak: expected 3, got %d", st.LongestFailRun)
	}
	if st.LongestPassRun != 3 {
		t.Errorf("expected longest pass run 3, got %d", st.LongestPassRun)
	}
	if st.Timeouts != 1 || st.Failed != 2 || st.Passed != 4 {
		t.Errorf("unexpected totals: %+v", st)
	}
}

func TestAnalyze_GroupsByPathAndName(t *testing.T) {
	a := makeResults("same-name", domain.StatusPassed, domain.StatusPassed, domain.StatusPassed)
	b := makeResults("same-name", domain.StatusFailed, domain.StatusFailed, domain.StatusFailed)
	for i := range b {
		b[i].TestPath = "other/path.spec"
	}

	stats := Analyze(append(a, b...))
	if len(stats) != 2 {
		t.Fatalf("expected 2 distinct tests, got %d", len(stats))
	}
}

func TestAnalyze_SkippedCarriesNoSignal(t *testing.T) {
	st := statsFor(t, makeResults("skippy",
		domain.StatusPassed, domain.StatusSkipped, domain.StatusPassed,
		domain.StatusSkipped, domain.StatusFailed, domain.StatusPassed,
	))

	if st.Skipped != 2 {
		t.Errorf("expected 2 skips recorded, got %d", st.Skipped)
	}
	// 3 passes of 4 scorable runs.
	if st.SuccessRate != 0.75 {
		t.Errorf("expected success rate 0.75 over non-skipped runs, got %f", st.SuccessRate)
	}
	if st.LongestPassRun != 2 {
		t.Errorf("skips should not break the pass streak, got %d", st.LongestPassRun)
	}
}

func TestRiskTiers(t *testing.T) {
	if got := riskTier(0.75); got != domain.RiskHigh {
		t.Errorf("0.75 should be high, got %s", got)
	}
	if got := riskTier(0.5); got != domain.RiskMedium {
		t.Errorf("0.5 should be medium, got %s", got)
	}
	if got := riskTier(0.35); got != domain.RiskLow {
		t.Errorf("0.35 should be low, got %s", got)
	}
}
