package storage

import (
	"context"
	"fmt"
)

// ChatRepository holds the append-only list of chats allowed to use the bot.
type ChatRepository struct {
	db *DB
}

func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) IsPermitted(ctx context.Context, chatID int64) (bool, error) {
	var exists bool
	err := r.db.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM chats WHERE tg_chat_id = ?)
	`, chatID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check chat: %w", err)
	}
	return exists, nil
}

// Permit appends chatID. It reports false if the chat was already permitted.
func (r *ChatRepository) Permit(ctx context.Context, chatID int64) (bool, error) {
	result, err := r.db.db.ExecContext(ctx, `
		INSERT INTO chats (tg_chat_id) VALUES (?)
		ON CONFLICT(tg_chat_id) DO NOTHING
	`, chatID)
	if err != nil {
		return false, fmt.Errorf("insert chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert chat: rows affected: %w", err)
	}
	return affected == 1, nil
}

// List returns permitted chats in registration order.
func (r *ChatRepository) List(ctx context.Context) ([]int64, error) {
	rows, err := r.db.db.QueryContext(ctx, `SELECT tg_chat_id FROM chats ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
