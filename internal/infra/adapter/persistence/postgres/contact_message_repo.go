package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/resilience/circuitbreaker"
)

type ContactMessageRepo struct{ db circuitbreaker.Querier }

func NewContactMessageRepo(db circuitbreaker.Querier) repository.ContactMessageRepository {
	return &ContactMessageRepo{db: db}
}

// Create inserts msg and fills in its id and creation time.
func (repo *ContactMessageRepo) Create(ctx context.Context, msg *entity.ContactMessage) error {
	const query = `
INSERT INTO contact_messages (name, phone, email, subject, message)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`
	if err := repo.db.QueryRowContext(ctx, query,
		msg.Name, msg.Phone, msg.Email, msg.Subject, msg.Message,
	).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *ContactMessageRepo) Get(ctx context.Context, id int64) (*entity.ContactMessage, error) {
	const query = `
SELECT id, name, phone, email, subject, message, read, replied, created_at
FROM contact_messages
WHERE id = $1`
	var m entity.ContactMessage
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.Phone, &m.Email, &m.Subject, &m.Message,
		&m.Read, &m.Replied, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &m, nil
}

func (repo *ContactMessageRepo) MarkRead(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE contact_messages SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("MarkRead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("MarkRead: message %d: %w", id, entity.ErrNotFound)
	}
	return nil
}

func (repo *ContactMessageRepo) List(ctx context.Context, filter repository.ContactMessageFilter, offset, limit int) ([]*entity.ContactMessage, error) {
	query := `
SELECT id, name, phone, email, subject, message, read, replied, created_at
FROM contact_messages` + whereUnread(filter) + `
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`
	rows, err := repo.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.ContactMessage
	for rows.Next() {
		var m entity.ContactMessage
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Phone, &m.Email, &m.Subject, &m.Message,
			&m.Read, &m.Replied, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return out, nil
}

func (repo *ContactMessageRepo) Count(ctx context.Context, filter repository.ContactMessageFilter) (int64, error) {
	var n int64
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_messages`+whereUnread(filter)).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

func whereUnread(filter repository.ContactMessageFilter) string {
	if filter.UnreadOnly {
		return "\nWHERE read = FALSE"
	}
	return ""
}
