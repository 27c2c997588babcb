package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// lockLease bounds how long a crashed holder can block others.
	lockLease = 2 * time.Minute
	lockRetry = 50 * time.Millisecond
)

// DocumentLock is a named mutual-exclusion lease stored in the database, so
// it serializes handlers across goroutines and processes alike.
type DocumentLock struct {
	db     *DB
	name   string
	logger *slog.Logger
}

func NewDocumentLock(db *DB, name string, logger *slog.Logger) *DocumentLock {
	return &DocumentLock{db: db, name: name, logger: logger}
}

// TryLock takes the lock if it is free or its lease expired.
func (l *DocumentLock) TryLock(ctx context.Context) (func(), bool, error) {
	holder := uuid.NewString()
	now := l.db.now()
	result, err := l.db.db.ExecContext(ctx, `
		INSERT INTO locks (name, holder, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE locks.expires_at <= ?
	`, l.name, holder, now.Add(lockLease).UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %q: %w", l.name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %q: rows affected: %w", l.name, err)
	}
	if affected == 0 {
		return nil, false, nil
	}
	return func() { l.release(holder) }, true, nil
}

// WaitLock blocks until the lock is taken, ctx is done or timeout elapses.
func (l *DocumentLock) WaitLock(ctx context.Context, timeout time.Duration) (func(), error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	retry := time.NewTicker(lockRetry)
	defer retry.Stop()

	for {
		unlock, ok, err := l.TryLock(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, l.name)
		case <-retry.C:
		}
	}
}

// release drops the lease only if this holder still owns it.
func (l *DocumentLock) release(holder string) {
	_, err := l.db.db.ExecContext(context.Background(), `
		DELETE FROM locks WHERE name = ? AND holder = ?
	`, l.name, holder)
	if err != nil {
		l.logger.Error("failed to release lock", "lock", l.name, "error", err)
	}
}
