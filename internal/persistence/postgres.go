package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// PostgresOptions tunes the connection pool.
type PostgresOptions struct {
	MaxOpenConns int
	PingTimeout  time.Duration
}

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	*SQLDatabase
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string, opts PostgresOptions) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 25
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}

	// Set connection pool settings
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{SQLDatabase: NewSQLDatabase(db, PostgresDialect)}, nil
}
