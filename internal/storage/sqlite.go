package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	db  *sql.DB
	now func() time.Time
}

func NewDB(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps pragmas in effect and makes PRAGMA data_version
	// report only writes made by other processes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	return &DB{db: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS citations (
		n INTEGER PRIMARY KEY AUTOINCREMENT CHECK (n >= 2),
		who TEXT NOT NULL,
		what TEXT NOT NULL,
		what_spans TEXT NOT NULL DEFAULT '[]',
		comment TEXT NOT NULL DEFAULT '',
		likes TEXT NOT NULL DEFAULT '{}',
		source TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tg_chat_id INTEGER NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bans (
		tg_user_id INTEGER PRIMARY KEY,
		tg_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS locks (
		name TEXT PRIMARY KEY,
		holder TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS triggers (
		id TEXT PRIMARY KEY,
		tag TEXT NOT NULL,
		fire_at INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Row numbers are never reused, even after the highest row is deleted.
	-- The sequence starts at 1 so the first citation lands on row 2.
	INSERT INTO sqlite_sequence (name, seq)
	SELECT 'citations', 1
	WHERE NOT EXISTS (SELECT 1 FROM sqlite_sequence WHERE name = 'citations');

	CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at);
	CREATE INDEX IF NOT EXISTS idx_triggers_fire_at ON triggers(fire_at);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// DataVersion returns SQLite's data_version counter for the pooled
// connection. It changes only when another connection commits.
func (d *DB) DataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := d.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read data_version: %w", err)
	}
	return v, nil
}

func (d *DB) nowMillis() int64 {
	return d.now().UnixMilli()
}
