package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"perfumery-notify/internal/resilience/retry"
)

// ErrMissingDSN is returned by Open when no connection string is configured.
var ErrMissingDSN = errors.New("DATABASE_URL not set")

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}

// Open creates a connection pool for dsn, applies cfg and verifies the
// connection, retrying the ping per retry.DBConfig.
func Open(ctx context.Context, dsn string, cfg ConnectionConfig) (*sql.DB, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	if err := Ping(ctx, db, retry.DBConfig()); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("database connection established successfully")
	return db, nil
}

// Pinger is satisfied by *sql.DB and the database circuit breaker.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ping checks connectivity under policy, each attempt bounded to 5 seconds.
func Ping(ctx context.Context, db Pinger, policy retry.Policy) error {
	policy.Retryable = func(error) bool { return true }
	_, err := policy.Do(ctx, func(ctx context.Context, _ int) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}
