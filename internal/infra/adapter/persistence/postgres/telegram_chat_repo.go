package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/resilience/circuitbreaker"
)

type TelegramChatRepo struct{ db circuitbreaker.Querier }

func NewTelegramChatRepo(db circuitbreaker.Querier) repository.TelegramChatRepository {
	return &TelegramChatRepo{db: db}
}

func scanChats(rows *sql.Rows) ([]*entity.TelegramChat, error) {
	defer func() { _ = rows.Close() }()
	chats := make([]*entity.TelegramChat, 0, 8)
	for rows.Next() {
		var c entity.TelegramChat
		if err := rows.Scan(&c.ID, &c.ChatID, &c.Title, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, &c)
	}
	return chats, rows.Err()
}

func (repo *TelegramChatRepo) List(ctx context.Context) ([]*entity.TelegramChat, error) {
	const query = `
SELECT id, chat_id, title, active, created_at
FROM telegram_chats
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	chats, err := scanChats(rows)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return chats, nil
}

func (repo *TelegramChatRepo) ListActive(ctx context.Context) ([]*entity.TelegramChat, error) {
	const query = `
SELECT id, chat_id, title, active, created_at
FROM telegram_chats
WHERE active = TRUE
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	chats, err := scanChats(rows)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	return chats, nil
}

// Create inserts chat and fills in its id and creation time.
func (repo *TelegramChatRepo) Create(ctx context.Context, chat *entity.TelegramChat) error {
	const query = `
INSERT INTO telegram_chats (chat_id, title, active)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	if err := repo.db.QueryRowContext(ctx, query, chat.ChatID, chat.Title, chat.Active).
		Scan(&chat.ID, &chat.CreatedAt); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *TelegramChatRepo) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE telegram_chats SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("SetActive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("SetActive: chat %d: %w", id, entity.ErrNotFound)
	}
	return nil
}

func (repo *TelegramChatRepo) Delete(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM telegram_chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: chat %d: %w", id, entity.ErrNotFound)
	}
	return nil
}
