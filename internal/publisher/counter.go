package publisher

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// VersionCounter supplies monotonic release version identifiers. The
// Publisher only consumes values; it never invents them. Injecting the
// counter keeps version assignment out of publishing logic and lets tests
// use a fixed value.
type VersionCounter interface {
	Next(ctx context.Context) (int64, error)
}

// StaticCounter always returns the same version id. Used for explicit
// --version invocations and tests.
type StaticCounter int64

// Next implements VersionCounter.
func (c StaticCounter) Next(context.Context) (int64, error) {
	return int64(c), nil
}

// SQLiteCounter persists a monotonic counter in a sqlite database so version
// ids survive across invocations and never repeat.
type SQLiteCounter struct {
	db *sql.DB
}

// OpenSQLiteCounter opens (creating if needed) the counter database.
func OpenSQLiteCounter(path string) (*SQLiteCounter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create counter directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open counter database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS release_counter (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		value INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize counter table: %w", err)
	}
	return &SQLiteCounter{db: db}, nil
}

// Next atomically increments and returns the counter.
func (c *SQLiteCounter) Next(ctx context.Context) (int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin counter transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO release_counter (id, value) VALUES (1, 0)`); err != nil {
		return 0, fmt.Errorf("seed counter: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE release_counter SET value = value + 1 WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}

	var value int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM release_counter WHERE id = 1`).Scan(&value); err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit counter: %w", err)
	}
	return value, nil
}

// Close releases the underlying database handle.
func (c *SQLiteCounter) Close() error {
	return c.db.Close()
}
