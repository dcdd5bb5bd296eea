package retry

import (
	"sort"
	"sync"
)

// OpStats aggregates attempt counts for one named operation.
type OpStats struct {
	Operation       string  `json:"operation"`
	Calls           int     `json:"calls"`
	TotalAttempts   int     `json:"total_attempts"`
	Recovered       int     `json:"recovered"`
	Failures        int     `json:"failures"`
	AverageAttempts float64 `json:"average_attempts"`
}

// Stats is a process-wide accumulator keyed by operation name.
type Stats struct {
	mu  sync.Mutex
	ops map[string]*opCounters
}

type opCounters struct {
	calls     int
	attempts  int
	recovered int
	failures  int
}

// DefaultStats collects across the whole process.
var DefaultStats = NewStats()

// NewStats creates an empty accumulator.
func NewStats() *Stats {
	return &Stats{ops: make(map[string]*opCounters)}
}

func (s *Stats) counters(name string) *opCounters {
	c, ok := s.ops[name]
	if !ok {
		c = &opCounters{}
		s.ops[name] = c
	}
	return c
}

func (s *Stats) recordAttempt(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters(name).attempts++
}

func (s *Stats) recordSuccess(name string, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters(name)
	c.calls++
	if attempt > 1 {
		c.recovered++
	}
}

func (s *Stats) recordFailure(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters(name)
	c.calls++
	c.failures++
}

// Snapshot returns per-operation stats sorted by name.
func (s *Stats) Snapshot() []OpStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]OpStats, 0, len(s.ops))
	for name, c := range s.ops {
		st := OpStats{
			Operation:     name,
			Calls:         c.calls,
			TotalAttempts: c.attempts,
			Recovered:     c.recovered,
			Failures:      c.failures,
		}
		if c.calls > 0 {
			st.AverageAttempts = float64(c.attempts) / float64(c.calls)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

// FlakyOperations returns names whose average attempt count exceeds the
// threshold, for reporting. A threshold <= 0 defaults to 1.5.
func (s *Stats) FlakyOperations(threshold float64) []string {
	if threshold <= 0 {
		threshold = 1.5
	}

	var names []string
	for _, st := range s.Snapshot() {
		if st.AverageAttempts > threshold {
			names = append(names, st.Operation)
		}
	}
	return names
}

// Reset clears all accumulated counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = make(map[string]*opCounters)
}
