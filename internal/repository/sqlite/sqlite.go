// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary builds without a C
// toolchain and cross-compiles like any other Go program.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB      : a connection pool (NOT a single connection!)
//   - sql.Row     : a single result row
//   - sql.Rows    : multiple result rows (must be closed!)
//
// The pattern is always:
//  1. sql.Open(driverName, dataSourceName) → creates a pool
//  2. db.QueryContext / db.ExecContext     → runs queries
//  3. rows.Scan(&field1, &field2)          → reads results into Go variables
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// memoryPath is the DSN for a throwaway in-memory database.
const memoryPath = ":memory:"

// DB wraps a sql.DB connection pool and implements every repository interface
// in internal/repository.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/storefront.db"  → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
//
// IN-MEMORY DATABASES AND THE POOL:
// Every new connection to ":memory:" gets its OWN empty database. If the pool
// opened a second connection, it would not see the tables created by the first.
// Capping the pool at one connection keeps the whole process on one database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == memoryPath {
		conn.SetMaxOpenConns(1)
	}

	// Ping forces a real connection so a bad path fails here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// A writer waits up to 5s for the lock instead of failing with SQLITE_BUSY.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// PingContext reports whether the database is reachable. Used by /healthz.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent
// (CREATE ... IF NOT EXISTS), so it is safe to run on every start.
//
// Users are owned by the auth layer; the other tables reference user IDs
// without foreign keys so the storefront tables never block account changes.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// STORAGE-LEVEL INVARIANTS:
	// - exactly one of user_id / email is set
	// - premium downloads always belong to a user
	// - one (email, referred_by) pair per referrer, enforced by a partial unique
	//   index so the check-then-insert in the tracker cannot race into duplicates
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS catalog_downloads (
			id            TEXT PRIMARY KEY,
			user_id       TEXT,
			email         TEXT,
			catalog_type  TEXT NOT NULL CHECK (catalog_type IN ('public', 'premium')),
			downloaded_at DATETIME NOT NULL,
			referred_by   TEXT,
			CHECK ((user_id IS NULL) <> (email IS NULL)),
			CHECK (catalog_type = 'public' OR user_id IS NOT NULL)
		);
		CREATE INDEX IF NOT EXISTS idx_catalog_downloads_user
			ON catalog_downloads(user_id, downloaded_at);
		CREATE INDEX IF NOT EXISTS idx_catalog_downloads_referred_by
			ON catalog_downloads(referred_by);
		CREATE UNIQUE INDEX IF NOT EXISTS ux_catalog_downloads_referral
			ON catalog_downloads(email, referred_by) WHERE referred_by IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating catalog_downloads table: %w", err)
	}

	// purchase_amount is TEXT so decimal values are stored exactly.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS purchases (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			watch_name      TEXT NOT NULL,
			watch_reference TEXT NOT NULL,
			purchase_amount TEXT NOT NULL,
			purchase_date   DATETIME NOT NULL,
			notes           TEXT,
			created_at      DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_purchases_user
			ON purchases(user_id, purchase_date);
	`)
	if err != nil {
		return fmt.Errorf("creating purchases table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS referral_codes (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL UNIQUE,
			code       TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating referral_codes table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint or
// unique index. SQLite names the offending columns in the message, e.g.
// "UNIQUE constraint failed: referral_codes.code".
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// violates reports whether a unique-violation message names the given column.
func violates(err error, column string) bool {
	return isUniqueViolation(err) && strings.Contains(err.Error(), column)
}

// nullString converts an optional string into the driver's NULL-aware form.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// stringPtr is the inverse of nullString for scanned columns.
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
