package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/resilience/circuitbreaker"
)

// OrderRepo stores orders as JSON documents with status and created_at
// lifted into indexed columns.
type OrderRepo struct {
	db  circuitbreaker.Querier
	now func() time.Time
}

func NewOrderRepo(db circuitbreaker.Querier) repository.OrderRepository {
	return &OrderRepo{db: db, now: time.Now}
}

func scanOrderDoc(doc []byte) (*entity.Order, error) {
	var order entity.Order
	if err := json.Unmarshal(doc, &order); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &order, nil
}

func (repo *OrderRepo) Get(ctx context.Context, id string) (*entity.Order, error) {
	const query = `SELECT doc FROM orders WHERE id = $1`
	var doc []byte
	err := repo.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	order, err := scanOrderDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return order, nil
}

func (repo *OrderRepo) LatestPending(ctx context.Context) (*entity.Order, error) {
	const query = `
SELECT doc
FROM orders
WHERE status = 'pending'
ORDER BY created_at DESC
LIMIT 1`
	var doc []byte
	err := repo.db.QueryRowContext(ctx, query).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LatestPending: %w", err)
	}
	order, err := scanOrderDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("LatestPending: %w", err)
	}
	return order, nil
}

// Create fills in a missing id, status and timestamps before inserting.
func (repo *OrderRepo) Create(ctx context.Context, order *entity.Order) error {
	now := repo.now().UTC()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = entity.OrderStatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	doc, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("Create: marshal order: %w", err)
	}

	const query = `
INSERT INTO orders (id, status, doc, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, query,
		order.ID, string(order.Status), doc, order.CreatedAt, order.UpdatedAt,
	); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// UpdateStatus sets the status and appends change to the status history.
func (repo *OrderRepo) UpdateStatus(ctx context.Context, id string, change entity.StatusChange) error {
	if !change.Status.Valid() {
		return fmt.Errorf("UpdateStatus: %w: status %q", entity.ErrInvalidInput, change.Status)
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = repo.now().UTC()
	}
	history, err := json.Marshal([]entity.StatusChange{change})
	if err != nil {
		return fmt.Errorf("UpdateStatus: marshal history: %w", err)
	}

	const query = `
UPDATE orders SET
       status     = $2,
       doc        = jsonb_set(
                      jsonb_set(doc, '{status}', to_jsonb($2::text)),
                      '{statusHistory}',
                      COALESCE(doc->'statusHistory', '[]'::jsonb) || $3::jsonb),
       updated_at = $4
WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id, string(change.Status), history, change.Timestamp)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("UpdateStatus: order %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

func (repo *OrderRepo) NextOrderNumber(ctx context.Context) (string, error) {
	var n int64
	if err := repo.db.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("NextOrderNumber: %w", err)
	}
	return strconv.FormatInt(n, 10), nil
}
