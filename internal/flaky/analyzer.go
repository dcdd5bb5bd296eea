package flaky

import (
	"math"
	"sort"

	"github.com/vietddude/flakewatch/internal/core/domain"
)

// Scoring constants. These are heuristic, kept for behavioral parity
// with the historical detector rather than derived from a statistical
// model.
const (
	// minRunsForScoring is the evidence floor: fewer runs score zero.
	minRunsForScoring = 3

	// flakyThreshold flags a test once its score exceeds it.
	flakyThreshold = 0.3

	// timeoutFloor raises the score of any test that ever timed out.
	timeoutFloor = 0.4

	// brokenRate and brokenDampening: near-always-failing tests are
	// broken, not flaky.
	brokenRate      = 0.2
	brokenDampening = 0.5

	// passingRate and passingDampening: near-always-passing tests are
	// not flagged.
	passingRate      = 0.9
	passingDampening = 0.3
)

// Analyze derives per-test statistics from the result log, one entry per
// testPath::testName key, sorted by flaky score descending.
func Analyze(results []domain.TestResult) []domain.TestStats {
	grouped := make(map[string][]domain.TestResult)
	var order []string
	for _, r := range results {
		key := r.Key()
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], r)
	}

	stats := make([]domain.TestStats, 0, len(order))
	for _, key := range order {
		stats = append(stats, computeStats(grouped[key]))
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].FlakyScore > stats[j].FlakyScore
	})
	return stats
}

func computeStats(results []domain.TestResult) domain.TestStats {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})

	first := results[0]
	st := domain.TestStats{
		TestName:  first.TestName,
		TestPath:  first.TestPath,
		Suite:     first.Suite,
		FirstSeen: first.Timestamp,
		LastSeen:  results[len(results)-1].Timestamp,
	}

	// Streak replay over the time-ordered sequence. Failures and
	// timeouts extend the same failure streak; skips carry no signal
	// and break neither streak.
	var failRun, passRun int
	for _, r := range results {
		st.TotalRuns++
		switch r.Status {
		case domain.StatusPassed:
			st.Passed++
			passRun++
			failRun = 0
		case domain.StatusFailed:
			st.Failed++
			failRun++
			passRun = 0
		case domain.StatusTimeout:
			st.Timeouts++
			failRun++
			passRun = 0
		case domain.StatusSkipped:
			st.Skipped++
		}
		if failRun > st.LongestFailRun {
			st.LongestFailRun = failRun
		}
		if passRun > st.LongestPassRun {
			st.LongestPassRun = passRun
		}
	}

	scorable := st.Passed + st.Failed + st.Timeouts
	if scorable > 0 {
		st.SuccessRate = float64(st.Passed) / float64(scorable)
	}
	st.FlakyScore = score(scorable, st.SuccessRate, st.Timeouts > 0)
	return st
}

// score implements the heuristic flakiness estimate: maximal at a 50%
// success rate, zero at the extremes, with boundary adjustments applied
// in order.
func score(runs int, successRate float64, hadTimeout bool) float64 {
	if runs < minRunsForScoring {
		return 0
	}

	s := 1 - 2*math.Abs(0.5-successRate)

	if hadTimeout && s < timeoutFloor {
		s = timeoutFloor
	}
	if successRate < brokenRate {
		s *= brokenDampening
	}
	if successRate > passingRate {
		s *= passingDampening
	}
	return s
}

// IsFlaky reports whether the stats cross the flakiness threshold.
func IsFlaky(st domain.TestStats) bool {
	return st.FlakyScore > flakyThreshold
}

// FlakyTests filters the stats down to flagged tests with risk tiers.
func FlakyTests(stats []domain.TestStats) []domain.FlakyTest {
	var flagged []domain.FlakyTest
	for _, st := range stats {
		if !IsFlaky(st) {
			continue
		}
		flagged = append(flagged, domain.FlakyTest{TestStats: st, Risk: riskTier(st.FlakyScore)})
	}
	return flagged
}

func riskTier(score float64) domain.RiskTier {
	switch {
	case score > 0.7:
		return domain.RiskHigh
	case score >= 0.4:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
