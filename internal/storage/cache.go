package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MaxCacheTTL caps how long a cache entry may live.
const MaxCacheTTL = 6 * time.Hour

// Cache is a key-value table with per-entry expiry. Expired entries are
// invisible to Get and removed by PurgeExpired.
type Cache struct {
	db *DB
}

func NewCache(db *DB) *Cache {
	return &Cache{db: db}
}

// Get returns the value of key and whether it is present and unexpired.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.db.db.QueryRowContext(ctx, `
		SELECT value FROM cache WHERE key = ? AND expires_at > ?
	`, key, c.db.nowMillis()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cache %q: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key. A ttl that is not positive or exceeds
// MaxCacheTTL is clamped to MaxCacheTTL.
func (c *Cache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 || ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}
	expiresAt := c.db.now().Add(ttl).UnixMilli()
	_, err := c.db.db.ExecContext(ctx, `
		INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("put cache %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Remove(ctx context.Context, key string) error {
	if _, err := c.db.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove cache %q: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := c.db.db.ExecContext(ctx, `DELETE FROM cache WHERE expires_at <= ?`, c.db.nowMillis())
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return result.RowsAffected()
}
