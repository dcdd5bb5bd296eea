package flaky

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/flakewatch/internal/core/domain"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "results.json"))
}

func TestStore_MissingFileIsEmptyLog(t *testing.T) {
	store := tempStore(t)
	results, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty log, got %d results", len(results))
	}
}

func TestStore_AppendAndLoad(t *testing.T) {
	store := tempStore(t)

	first := domain.TestResult{
		TestName:  "a",
		TestPath:  "p",
		Status:    domain.StatusPassed,
		Timestamp: time.Now().Add(-time.Hour),
		RunID:     "r1",
	}
	second := first
	second.Status = domain.StatusFailed
	second.Timestamp = time.Now()
	second.RunID = "r2"

	if err := store.Append(first); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(second); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	results, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].RunID != "r1" || results[1].RunID != "r2" {
		t.Errorf("expected time-ordered results, got %s then %s", results[0].RunID, results[1].RunID)
	}
}

func TestStore_ReadsNewlineDelimitedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.ndjson")

	lines := ""
	for _, status := range []domain.TestStatus{domain.StatusPassed, domain.StatusFailed} {
		data, _ := json.Marshal(domain.TestResult{
			TestName:  "legacy",
			TestPath:  "p",
			Status:    status,
			Timestamp: time.Now(),
		})
		lines += string(data) + "\n"
	}
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	store := NewStore(path)
	results, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results from the newline-delimited log, got %d", len(results))
	}
}

func TestStore_PrunesThirtyDayWindow(t *testing.T) {
	store := tempStore(t)

	old := domain.TestResult{
		TestName:  "old",
		TestPath:  "p",
		Status:    domain.StatusPassed,
		Timestamp: time.Now().Add(-31 * 24 * time.Hour),
	}
	fresh := old
	fresh.TestName = "fresh"
	fresh.Timestamp = time.Now()

	if err := store.Save([]domain.TestResult{old, fresh}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	results, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(results) != 1 || results[0].TestName != "fresh" {
		t.Errorf("expected only the fresh result after pruning, got %+v", results)
	}
}

func TestStore_WritesArrayFormat(t *testing.T) {
	store := tempStore(t)
	if err := store.Append(domain.TestResult{
		TestName:  "a",
		TestPath:  "p",
		Status:    domain.StatusPassed,
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	data, err := os.ReadFile(store.path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var parsed []domain.TestResult
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("log should be a JSON array: %v", err)
	}
}
