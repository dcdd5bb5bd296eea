package cleanup

import "github.com/vietddude/flakewatch/internal/core/domain"

// CleanupStats summarizes the cascade's history, used to infer which
// strategy is empirically most reliable in the current environment.
type CleanupStats struct {
	TotalRuns         int                            `json:"total_runs"`
	Successes         int                            `json:"successes"`
	SuccessRate       float64                        `json:"success_rate"`
	AverageDurationMs float64                        `json:"average_duration_ms"`
	StrategyUsage     map[domain.CleanupStrategy]int `json:"strategy_usage"`
	MostReliable      domain.CleanupStrategy         `json:"most_reliable"`
}

// GetStats computes statistics across the recorded history.
func (c *Cleaner) GetStats() CleanupStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CleanupStats{
		StrategyUsage: make(map[domain.CleanupStrategy]int),
	}

	var totalDuration int64
	successByStrategy := make(map[domain.CleanupStrategy]int)

	for _, r := range c.history {
		stats.TotalRuns++
		stats.StrategyUsage[r.Strategy]++
		totalDuration += r.DurationMs
		if r.Success {
			stats.Successes++
			successByStrategy[r.Strategy]++
		}
	}

	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.Successes) / float64(stats.TotalRuns)
		stats.AverageDurationMs = float64(totalDuration) / float64(stats.TotalRuns)
	}

	best := -1
	for _, strategy := range domain.StrategyOrder {
		if n := successByStrategy[strategy]; n > best {
			best = n
			stats.MostReliable = strategy
		}
	}
	return stats
}
