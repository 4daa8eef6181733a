package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// runPostgresMigrations applies the SQL migrations under database/migrations
// to a postgres database
func runPostgresMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Try to find the migrations directory
	// First try from project root
	migrationsPath, err := filepath.Abs("database/migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// If running from within the database directory (during tests), adjust path
	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		migrationsPath, err = filepath.Abs("migrations")
		if err != nil {
			return fmt.Errorf("failed to get migrations path: %w", err)
		}
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Check current version and apply migrations
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if dirty {
		// Try to force clean and retry
		Logger.Warn("Database is in dirty state, attempting to recover")
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
	}

	// Apply latest migrations
	Logger.Info("Applying database migrations")
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	Logger.Info("Database migrations completed successfully")
	return nil
}
