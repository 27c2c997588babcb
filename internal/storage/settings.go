package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const passphraseKey = "passphrase"

type SettingsRepository struct {
	db *DB
}

func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value of key, or "" if it is not set.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (r *SettingsRepository) Passphrase(ctx context.Context) (string, error) {
	return r.Get(ctx, passphraseKey)
}

// EnsurePassphrase stores seed unless a passphrase is already set. An empty
// seed leaves the settings untouched.
func (r *SettingsRepository) EnsurePassphrase(ctx context.Context, seed string) error {
	if seed == "" {
		return nil
	}
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING
	`, passphraseKey, seed)
	if err != nil {
		return fmt.Errorf("seed passphrase: %w", err)
	}
	return nil
}
