// Package db provides database utilities and connection handling for Question Bank.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// PgvectorRequirement documents that the application requires PostgreSQL with
// pgvector. The extension backs embedding storage and the similarity search
// functions.
const PgvectorRequirement = "pgvector extension is required for similarity search"

// VersionQuery is the SQL query to verify pgvector is available.
const VersionQuery = "SELECT extversion FROM pg_extension WHERE extname = 'vector'"

// Connection pool defaults.
const (
	MaxOpenConns    = 25
	MaxIdleConns    = 5
	ConnMaxLifetime = 5 * time.Minute
)

// Connect opens a connection pool to the given Postgres URL and verifies it
// with a ping.
func Connect(ctx context.Context, url string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(MaxOpenConns)
	conn.SetMaxIdleConns(MaxIdleConns)
	conn.SetConnMaxLifetime(ConnMaxLifetime)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// CheckPgvector verifies the pgvector extension is installed.
func CheckPgvector(ctx context.Context, conn *sql.DB) error {
	var version string
	if err := conn.QueryRowContext(ctx, VersionQuery).Scan(&version); err != nil {
		return fmt.Errorf("%s: %w", PgvectorRequirement, err)
	}
	return nil
}
