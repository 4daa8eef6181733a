package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// runMigrations runs all Bun migrations (sqlite path; postgres uses the SQL
// files under database/migrations)
func (b *BunDB) runMigrations(ctx context.Context) error {
	// Create a simple migrations tracking table
	_, err := b.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bun_schema_migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Check which migrations have been applied
	type AppliedMigration struct {
		bun.BaseModel `bun:"table:bun_schema_migrations"`
		Version       string `bun:"version"`
	}
	var applied []AppliedMigration
	err = b.db.NewSelect().
		Model(&applied).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to check applied migrations: %w", err)
	}

	appliedMap := make(map[string]bool)
	for _, m := range applied {
		appliedMap[m.Version] = true
	}

	// Run migrations in order
	migrations := []struct {
		version string
		name    string
		up      func(context.Context, *bun.DB) error
	}{
		{"001", "create_previews_table", init001CreatePreviewsTable},
		{"002", "create_jobs_table", init002CreateJobsTable},
	}

	for _, m := range migrations {
		if appliedMap[m.version] {
			continue
		}

		Logger.Info("Running migration", "version", m.version, "name", m.name)
		if err := m.up(ctx, b.db); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.version, err)
		}

		// Mark as applied
		_, err = b.db.NewInsert().
			Model(&AppliedMigration{Version: m.version}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark migration %s as applied: %w", m.version, err)
		}
	}

	Logger.Info("All migrations completed successfully")
	return nil
}

// Migration 001: Create the previews table
func init001CreatePreviewsTable(ctx context.Context, db *bun.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS previews (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ulid TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			output_name TEXT NOT NULL,
			handle TEXT,
			image_url TEXT,
			width INTEGER,
			height INTEGER,
			size_bytes INTEGER,
			status TEXT NOT NULL,
			error TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_previews_handle ON previews(handle)
	`)
	return err
}

// Migration 002: Create the jobs table
func init002CreateJobsTable(ctx context.Context, db *bun.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			current_step TEXT,
			message TEXT,
			error TEXT,
			result TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			started_at TIMESTAMP,
			completed_at TIMESTAMP
		)
	`)
	return err
}
