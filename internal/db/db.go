// Package db owns the single SQLite connection the orchestrator's
// repositories (conversations, codebases, isolation environments,
// sessions) are built on top of.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the shared *sql.DB. §5 of the orchestrator spec assumes
// single-row updates are atomic and does not assume multi-row
// transactions except where explicitly stated.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) a local SQLite database file at
// databaseURL and tunes it for the orchestrator's concurrent-handler
// workload: WAL journaling, a generous busy timeout, and a short
// exponential-backoff retry loop for the initial connection (sqlite can
// report SQLITE_BUSY under contention right after process start).
func New(databaseURL string) (*DB, error) {
	dbDir := filepath.Dir(databaseURL)
	if dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	const maxRetries = 5
	const baseDelay = 100 * time.Millisecond

	var conn *sql.DB
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		conn, err = sql.Open("sqlite", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)

		if err = conn.Ping(); err != nil {
			if attempt == maxRetries-1 {
				return nil, fmt.Errorf("failed to ping database after %d attempts: %w", maxRetries, err)
			}
			conn.Close()
			time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
			continue
		}
		break
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return &DB{conn: conn}, nil
}

// Conn returns the underlying *sql.DB for repositories to build on.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Close releases the connection, dropping pool limits first for a faster
// shutdown under WAL mode.
func (d *DB) Close() error {
	d.conn.SetMaxOpenConns(0)
	d.conn.SetMaxIdleConns(0)
	d.conn.SetConnMaxLifetime(0)
	return d.conn.Close()
}

// Migrate applies every embedded goose migration under migrations/.
func (d *DB) Migrate() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.Up(d.conn, "migrations")
}
