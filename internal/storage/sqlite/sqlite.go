// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/silkfinik/fairsplit/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
//
// A single *sql.DB is shared by the reconciler and the uploader. SQLite
// serializes writes per connection, and every conditional dirty-clear is one
// UPDATE statement, so the LWW compare and the fencing check never interleave
// with another write to the same row.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys (cascade deletes depend on this)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeShares serializes a member-id → amount map to its TEXT column form.
func encodeShares(shares map[string]float64) (string, error) {
	if shares == nil {
		return "{}", nil
	}
	data, err := json.Marshal(shares)
	if err != nil {
		return "", fmt.Errorf("failed to encode shares: %w", err)
	}
	return string(data), nil
}

// decodeShares parses the TEXT column form back into a map.
func decodeShares(raw string) (map[string]float64, error) {
	shares := make(map[string]float64)
	if raw == "" {
		return shares, nil
	}
	if err := json.Unmarshal([]byte(raw), &shares); err != nil {
		return nil, fmt.Errorf("failed to decode shares: %w", err)
	}
	return shares, nil
}
