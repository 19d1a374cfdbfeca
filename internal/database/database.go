package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultSchema is the built-in schema script, used when no external
// script is given and written out by `kpimon init`.
//
//go:embed schema.sql
var DefaultSchema []byte

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path and applies
// the schema script at schemaPath. An empty schemaPath falls back to the
// embedded default schema. The script is treated as opaque and must be
// idempotent (CREATE ... IF NOT EXISTS); applying it to an already
// provisioned store is a no-op.
func Open(dbPath, schemaPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrStore, err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: setting journal mode: %v", ErrStore, err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: enabling foreign keys: %v", ErrStore, err)
	}

	if err := ensureSchema(conn, schemaPath); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// ensureSchema applies the schema script to the connection. The script
// may contain multiple statements; sqlite executes them as one batch.
func ensureSchema(conn *sql.DB, schemaPath string) error {
	script := DefaultSchema
	if schemaPath != "" {
		data, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("%w: reading schema script %s: %v", ErrSchema, schemaPath, err)
		}
		script = data
	}

	if _, err := conn.Exec(string(script)); err != nil {
		return fmt.Errorf("%w: applying schema script: %v", ErrSchema, err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
