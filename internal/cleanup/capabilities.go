package cleanup

import (
	"context"

	"github.com/vietddude/flakewatch/internal/infra/storage/postgres"
	"github.com/vietddude/flakewatch/internal/retry"
)

// PostgresCapabilities builds the production cleanup capabilities over
// the table registry and schema resetter. Database calls go through the
// database-aware retry classifier.
func PostgresCapabilities(db *postgres.DB, tables *postgres.Tables, resetter *postgres.Resetter) Capabilities {
	return Capabilities{
		CountRecords: func(ctx context.Context) (int64, error) {
			return retry.DoDatabaseValue(ctx, "cleanup.count", func(ctx context.Context) (int64, error) {
				return tables.CountAll(ctx, db)
			}, retry.Options{})
		},
		Verify: func(ctx context.Context) error {
			return tables.VerifyEmpty(ctx, db)
		},
		CleanOptimized: func(ctx context.Context) error {
			_, err := tables.DeleteAll(ctx, db)
			return err
		},
		Reset: func(ctx context.Context) error {
			return resetter.Reset(ctx)
		},
	}
}
