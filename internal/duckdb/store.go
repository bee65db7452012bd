// Package duckdb keeps an in-memory DuckDB copy of the current alert snapshot
// for ad-hoc read-only SQL. Nothing is written to disk; every successful load
// replaces the table contents.
package duckdb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

//go:embed schema/alerts.sql
var alertsSchema string

// Store manages the DuckDB connection and provides query methods.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	QueryTimeout time.Duration
}

// NewStore opens an in-memory DuckDB database and creates the alerts table.
// An optional queryTimeout can be passed; it defaults to 30s.
func NewStore(queryTimeout ...time.Duration) (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(alertsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: create schema: %w", err)
	}

	qt := 30 * time.Second
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		QueryTimeout: qt,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
