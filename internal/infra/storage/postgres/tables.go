package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx, so the registry can
// run against the pool or inside an isolation transaction.
type Querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// Tables is the registry of host domain tables, ordered child before
// parent so bulk deletes never violate foreign keys.
type Tables struct {
	ordered []string
}

// DefaultTables covers the host application schema.
func DefaultTables() *Tables {
	return NewTables([]string{"races", "runs", "goals"})
}

// NewTables builds a registry from an ordered child-to-parent list.
func NewTables(ordered []string) *Tables {
	return &Tables{ordered: ordered}
}

// Names returns the registered tables in deletion order.
func (t *Tables) Names() []string {
	out := make([]string, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// CountAll sums the row counts of every registered table.
func (t *Tables) CountAll(ctx context.Context, q Querier) (int64, error) {
	var total int64
	for _, table := range t.ordered {
		n, err := t.Count(ctx, q, table)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Count returns the row count of a single registered table.
func (t *Tables) Count(ctx context.Context, q Querier, table string) (int64, error) {
	if !t.registered(table) {
		return 0, fmt.Errorf("table %q is not registered", table)
	}

	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(table))
	if err := sqlx.GetContext(ctx, q, &n, query); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// DeleteAll removes every row from every registered table in dependency
// order and returns the number of rows removed.
func (t *Tables) DeleteAll(ctx context.Context, q Querier) (int64, error) {
	var affected int64
	for _, table := range t.ordered {
		res, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", pq.QuoteIdentifier(table)))
		if err != nil {
			return affected, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err == nil {
			affected += n
		}
	}
	return affected, nil
}

// VerifyEmpty fails if any registered table still contains rows.
func (t *Tables) VerifyEmpty(ctx context.Context, q Querier) error {
	var dirty []string
	for _, table := range t.ordered {
		n, err := t.Count(ctx, q, table)
		if err != nil {
			return err
		}
		if n > 0 {
			dirty = append(dirty, fmt.Sprintf("%s (%d rows)", table, n))
		}
	}

	if len(dirty) > 0 {
		return fmt.Errorf("cleanup verification failed, tables not empty: %s", strings.Join(dirty, ", "))
	}
	return nil
}

func (t *Tables) registered(table string) bool {
	for _, name := range t.ordered {
		if name == table {
			return true
		}
	}
	return false
}
