package storage

import (
	"context"
	"fmt"
	"time"

	"nuclight.org/citebot/internal/scheduler"
)

type TriggerRepository struct {
	db *DB
}

func NewTriggerRepository(db *DB) *TriggerRepository {
	return &TriggerRepository{db: db}
}

func (r *TriggerRepository) Create(ctx context.Context, t scheduler.Trigger) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO triggers (id, tag, fire_at) VALUES (?, ?, ?)
	`, t.ID, t.Tag, t.FireAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

// Delete is idempotent.
func (r *TriggerRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.db.ExecContext(ctx, `DELETE FROM triggers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	return nil
}

// Due returns triggers with fire time at or before now, oldest first.
func (r *TriggerRepository) Due(ctx context.Context, now time.Time) ([]scheduler.Trigger, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT id, tag, fire_at FROM triggers
		WHERE fire_at <= ?
		ORDER BY fire_at, id
	`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query due triggers: %w", err)
	}
	defer rows.Close()

	var due []scheduler.Trigger
	for rows.Next() {
		var t scheduler.Trigger
		var fireAt int64
		if err := rows.Scan(&t.ID, &t.Tag, &fireAt); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		t.FireAt = time.UnixMilli(fireAt)
		due = append(due, t)
	}
	return due, rows.Err()
}

func (r *TriggerRepository) HasTag(ctx context.Context, tag string) (bool, error) {
	var exists bool
	err := r.db.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM triggers WHERE tag = ?)
	`, tag).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check trigger tag: %w", err)
	}
	return exists, nil
}
