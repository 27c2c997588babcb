package storage

import (
	"context"
	"fmt"
)

type BanRepository struct {
	db *DB
}

func NewBanRepository(db *DB) *BanRepository {
	return &BanRepository{db: db}
}

func (r *BanRepository) IsBanned(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM bans WHERE tg_user_id = ?)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}
	return exists, nil
}

// Ban adds userID to the banned identities, refreshing the stored name.
func (r *BanRepository) Ban(ctx context.Context, userID int64, name string) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO bans (tg_user_id, tg_name) VALUES (?, ?)
		ON CONFLICT(tg_user_id) DO UPDATE SET tg_name = excluded.tg_name
	`, userID, name)
	if err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	return nil
}

// Unban reports whether userID was banned.
func (r *BanRepository) Unban(ctx context.Context, userID int64) (bool, error) {
	result, err := r.db.db.ExecContext(ctx, `DELETE FROM bans WHERE tg_user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("delete ban: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete ban: rows affected: %w", err)
	}
	return affected > 0, nil
}
