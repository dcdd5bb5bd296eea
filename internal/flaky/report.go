package flaky

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vietddude/flakewatch/internal/core/domain"
	"github.com/vietddude/flakewatch/internal/metrics"
)

// suiteConcentration is how many flaky tests in one suite warrant a
// suite-level recommendation.
const suiteConcentration = 3

// Report ranks flaky tests and carries advisory recommendations. It is
// never an error signal: consumers exit zero regardless of findings.
type Report struct {
	GeneratedAt     time.Time          `json:"generated_at"`
	TotalTests      int                `json:"total_tests"`
	TotalResults    int                `json:"total_results"`
	Flaky           []domain.FlakyTest `json:"flaky"`
	Recommendations []string           `json:"recommendations"`
}

// BuildReport derives the ranked report from analyzed stats.
func BuildReport(stats []domain.TestStats, totalResults int) Report {
	flagged := FlakyTests(stats)

	report := Report{
		GeneratedAt:  time.Now(),
		TotalTests:   len(stats),
		TotalResults: totalResults,
		Flaky:        flagged,
	}

	tierCounts := map[domain.RiskTier]int{}
	var highRisk []string
	for _, ft := range flagged {
		tierCounts[ft.Risk]++
		if ft.Risk == domain.RiskHigh {
			highRisk = append(highRisk, ft.Key())
		}
	}
	metrics.FlakyTests.WithLabelValues(string(domain.RiskHigh)).Set(float64(tierCounts[domain.RiskHigh]))
	metrics.FlakyTests.WithLabelValues(string(domain.RiskMedium)).Set(float64(tierCounts[domain.RiskMedium]))
	metrics.FlakyTests.WithLabelValues(string(domain.RiskLow)).Set(float64(tierCounts[domain.RiskLow]))

	if len(highRisk) > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Quarantine %d high-risk test(s): %s", len(highRisk), strings.Join(highRisk, ", ")))
	}

	var withTimeouts []string
	for _, st := range stats {
		if st.Timeouts > 0 {
			withTimeouts = append(withTimeouts, st.Key())
		}
	}
	if len(withTimeouts) > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Investigate timeout occurrences in: %s", strings.Join(withTimeouts, ", ")))
	}

	bySuite := map[string]int{}
	for _, ft := range flagged {
		if ft.Suite != "" {
			bySuite[ft.Suite]++
		}
	}
	suites := make([]string, 0, len(bySuite))
	for suite := range bySuite {
		suites = append(suites, suite)
	}
	sort.Strings(suites)
	for _, suite := range suites {
		if n := bySuite[suite]; n >= suiteConcentration {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("Suite %q has %d flaky tests: review shared fixtures and ordering assumptions", suite, n))
		}
	}

	return report
}

// Render formats the report as text for the CLI.
func (r Report) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Flakiness report (%s)\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Tests analyzed: %d (%d recorded results)\n", r.TotalTests, r.TotalResults)
	fmt.Fprintf(&b, "Flaky tests:    %d\n", len(r.Flaky))

	if len(r.Flaky) > 0 {
		b.WriteString("\n")
		for _, ft := range r.Flaky {
			fmt.Fprintf(&b, "  [%-6s] %-60s score=%.2f success=%.0f%% runs=%d fail-streak=%d\n",
				ft.Risk, ft.Key(), ft.FlakyScore, ft.SuccessRate*100, ft.TotalRuns, ft.LongestFailRun)
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}
	return b.String()
}
