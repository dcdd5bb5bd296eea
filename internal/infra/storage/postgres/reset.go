package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pressly/goose/v3"
)

// Resetter rebuilds the schema from scratch: migrate everything down,
// migrate back up, then apply the optional seed script. Destructive; the
// caller is responsible for serializing access to the physical store.
type Resetter struct {
	db            *DB
	migrationsDir string
	seedPath      string
}

// NewResetter creates a Resetter over the given migrations directory.
// seedPath may be empty when no seed data is needed.
func NewResetter(db *DB, migrationsDir, seedPath string) *Resetter {
	return &Resetter{db: db, migrationsDir: migrationsDir, seedPath: seedPath}
}

// Reset performs the full wipe-and-rebuild.
func (r *Resetter) Reset(ctx context.Context) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	slog.Warn("Resetting database schema", "migrations", r.migrationsDir)

	if err := goose.DownToContext(ctx, r.db.DB.DB, r.migrationsDir, 0); err != nil {
		return fmt.Errorf("failed to migrate down: %w", err)
	}
	if err := goose.UpContext(ctx, r.db.DB.DB, r.migrationsDir); err != nil {
		return fmt.Errorf("failed to migrate up: %w", err)
	}

	if r.seedPath == "" {
		return nil
	}

	seed, err := os.ReadFile(r.seedPath)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, string(seed)); err != nil {
		return fmt.Errorf("failed to apply seed: %w", err)
	}
	return nil
}
