package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/resilience/retry"
)

// DefaultChannel is the NOTIFY channel raised by the orders insert trigger.
const DefaultChannel = "order_created"

// insufficientPrivilege is SQLSTATE 42501.
const insufficientPrivilege = "42501"

const latestPendingQuery = `
SELECT doc
FROM orders
WHERE status = 'pending'
ORDER BY created_at DESC
LIMIT 1`

// notifyConn is the part of *pgx.Conn the feed uses.
type notifyConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// PostgresFeed listens for order inserts on a dedicated connection. After
// every (re)connect and every notification it emits the newest pending order.
type PostgresFeed struct {
	connect func(ctx context.Context) (notifyConn, error)
	channel string
	policy  retry.Policy
}

// NewPostgresFeed creates a feed on the database at dsn.
func NewPostgresFeed(dsn string, policy retry.Policy) *PostgresFeed {
	return &PostgresFeed{
		connect: func(ctx context.Context) (notifyConn, error) {
			return pgx.Connect(ctx, dsn)
		},
		channel: DefaultChannel,
		policy:  policy,
	}
}

// Subscribe implements repository.OrderFeed.
func (f *PostgresFeed) Subscribe(ctx context.Context) (repository.OrderSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return start(ctx, func(ctx context.Context, s *subscription) {
		supervise(ctx, s, "postgres", f.policy, f.session)
	}), nil
}

func (f *PostgresFeed) session(ctx context.Context, s *subscription) (bool, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return false, classifyPostgres("connect", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return false, classifyPostgres("listen", err)
	}
	slog.Info("order feed listening",
		slog.String("driver", "postgres"),
		slog.String("channel", f.channel))

	for {
		order, err := latestPending(ctx, conn)
		switch {
		case errors.Is(err, errMalformed):
			received.WithLabelValues("postgres", "malformed").Inc()
			s.report(err)
		case err != nil:
			return true, classifyPostgres("query latest pending order", err)
		case order != nil:
			if !s.emit(ctx, order) {
				return true, nil
			}
			received.WithLabelValues("postgres", "emitted").Inc()
		}
		if _, err := conn.WaitForNotification(ctx); err != nil {
			return true, classifyPostgres("wait for notification", err)
		}
	}
}

func latestPending(ctx context.Context, conn notifyConn) (*entity.Order, error) {
	var doc []byte
	err := conn.QueryRow(ctx, latestPendingQuery).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeOrder(doc)
}

func classifyPostgres(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == insufficientPrivilege {
		return fmt.Errorf("%s: %w: %s", op, repository.ErrPermissionDenied, pgErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
