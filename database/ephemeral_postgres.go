package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/stapelberg/postgrestest"
)

// SetupEphemeralPostgresDatabase creates an ephemeral PostgreSQL instance,
// migrates it, and returns the connection plus a cleanup function that stops
// the server. Used for development and tests; all data is destroyed on exit.
func SetupEphemeralPostgresDatabase() (*sql.DB, func(), error) {
	Logger.Info("Starting ephemeral PostgreSQL server...")

	ctx := context.Background()

	pgt, err := postgrestest.Start(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start ephemeral postgres: %w", err)
	}

	// Create a new database for the application
	dsn, err := pgt.CreateDatabase(ctx)
	if err != nil {
		pgt.Cleanup()
		return nil, nil, fmt.Errorf("failed to create previewd database: %w", err)
	}

	Logger.Info("Created ephemeral database", "dsn", dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		pgt.Cleanup()
		return nil, nil, fmt.Errorf("failed to open previewd database: %w", err)
	}

	if err := db.Ping(); err != nil {
		pgt.Cleanup()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	Logger.Info("Connected to ephemeral PostgreSQL database successfully")

	if err := runPostgresMigrations(db); err != nil {
		db.Close()
		pgt.Cleanup()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, pgt.Cleanup, nil
}
