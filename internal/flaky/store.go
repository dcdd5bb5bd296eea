// Package flaky scores and ranks non-deterministic tests from repeated
// run history.
package flaky

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/flakewatch/internal/core/domain"
)

// retentionWindow bounds the rolling result log.
const retentionWindow = 30 * 24 * time.Hour

// Store persists the test result log as JSON. Reads accept both a
// top-level array and newline-delimited objects; writes emit an array.
// The format carries no schema version, so it must stay additive-only.
type Store struct {
	path   string
	window time.Duration

	mu sync.Mutex
}

// NewStore creates a store at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path, window: retentionWindow}
}

// Load reads all recorded results. A missing file yields an empty log.
func (s *Store) Load() ([]domain.TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]domain.TestResult, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read result log: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var results []domain.TestResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("failed to parse result log: %w", err)
		}
		return results, nil
	}

	// Newline-delimited objects.
	var results []domain.TestResult
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var r domain.TestResult
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("failed to parse result line: %w", err)
		}
		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan result log: %w", err)
	}
	return results, nil
}

// Append records new results and prunes the log to the retention window.
func (s *Store) Append(results ...domain.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}
	return s.save(append(existing, results...))
}

// Save replaces the log with the given results, pruned to the window.
func (s *Store) Save(results []domain.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(results)
}

func (s *Store) save(results []domain.TestResult) error {
	results = pruneWindow(results, time.Now(), s.window)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result log: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create result log directory: %w", err)
		}
	}

	// Atomic replace so a crashed writer never corrupts the log.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result log: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace result log: %w", err)
	}
	return nil
}

func pruneWindow(results []domain.TestResult, now time.Time, window time.Duration) []domain.TestResult {
	cutoff := now.Add(-window)
	kept := results[:0]
	for _, r := range results {
		if r.Timestamp.After(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}
