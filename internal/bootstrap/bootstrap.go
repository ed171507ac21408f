// Package bootstrap builds the storage and notification stack shared by the
// api and worker binaries from a loaded config.
package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"perfumery-notify/internal/config"
	pgRepo "perfumery-notify/internal/infra/adapter/persistence/postgres"
	"perfumery-notify/internal/infra/db"
	"perfumery-notify/internal/infra/notifier"
	"perfumery-notify/internal/infra/settings"
	"perfumery-notify/internal/resilience/circuitbreaker"
	"perfumery-notify/internal/usecase/compose"
	"perfumery-notify/internal/usecase/notify"
)

// Database is an open pool and the breaker that repositories query through.
type Database struct {
	DB      *sql.DB
	Breaker *circuitbreaker.DBCircuitBreaker
}

// OpenDatabase connects, registers pool metrics under component and runs
// pending migrations when enabled. It returns nil without error when no
// DATABASE_URL is configured.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, component string) (*Database, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	database, err := db.Open(ctx, cfg.URL, db.ConnectionConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart {
		if err := db.MigrateUp(ctx, database); err != nil {
			_ = database.Close()
			return nil, err
		}
	}
	if err := prometheus.Register(collectors.NewDBStatsCollector(database, component)); err != nil {
		slog.Warn("database pool metrics not registered", slog.Any("error", err))
	}
	return &Database{DB: database, Breaker: circuitbreaker.NewDBCircuitBreaker(database)}, nil
}

// SQL returns the raw pool, or nil when d is nil.
func (d *Database) SQL() *sql.DB {
	if d == nil {
		return nil
	}
	return d.DB
}

// Close releases the pool. It is safe on a nil Database.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	return d.DB.Close()
}

// SettingsSources picks the YAML file when configured, then the database,
// then nothing but the environment defaults. The chat source may be nil.
func SettingsSources(cfg *config.Config, d *Database) (settings.Source, notify.ChatSource, error) {
	if cfg.Notify.SettingsFile != "" {
		static, err := settings.Load(cfg.Notify.SettingsFile)
		if err != nil {
			return nil, nil, err
		}
		return static, static, nil
	}
	if d != nil {
		return pgRepo.NewSettingsRepo(d.Breaker), pgRepo.NewTelegramChatRepo(d.Breaker), nil
	}
	empty, err := settings.Parse(nil)
	if err != nil {
		return nil, nil, err
	}
	return empty, nil, nil
}

// Notification is the wired delivery stack.
type Notification struct {
	Client   notifier.Client
	Resolver *notify.Resolver
	Service  *notify.Service
}

// NewNotification wires the Telegram client, recipient resolver, composer
// and fan-out.
func NewNotification(cfg *config.Config, src settings.Source, chats notify.ChatSource, logger *slog.Logger) *Notification {
	var client notifier.Client
	if cfg.Telegram.Enabled {
		client = notifier.NewTelegramClient(notifier.TelegramConfig{
			BaseURL:           cfg.Telegram.BaseURL,
			Timeout:           cfg.Telegram.Timeout,
			RequestsPerSecond: cfg.Telegram.RequestsPerSecond,
			Burst:             cfg.Telegram.Burst,
		})
	} else {
		logger.Info("Telegram disabled, notifications are discarded")
		client = notifier.NewNoopClient()
	}

	resolver := notify.NewResolver(settings.WithDefaults{
		Source:        src,
		BotToken:      cfg.Telegram.BotToken,
		PrimaryChatID: cfg.Telegram.ChatID,
	}, chats, cfg.Notify.ResolverTTL)

	composer := compose.New(compose.Config{
		Location:     cfg.Notify.Location(),
		Language:     cfg.Notify.LanguageTag(),
		ItemLanguage: cfg.Notify.ItemLanguage,
		Currency:     cfg.Notify.Currency,
		PickupMarker: cfg.Notify.PickupMarker,
	})
	timeout := recipientTimeout(cfg, client)
	fanout := notify.NewFanout(client, notify.FanoutConfig{
		Concurrency:      cfg.Notify.Concurrency,
		RecipientTimeout: timeout,
		Breaker:          circuitbreaker.TelegramChatConfig,
	})
	service := notify.NewService(composer, resolver, fanout, notify.WithMaxRetries(cfg.Notify.MaxRetries))

	logger.Info("Notification service configured",
		slog.Int("max_retries", service.MaxRetries()),
		slog.Duration("recipient_timeout", timeout))

	return &Notification{
		Client:   client,
		Resolver: resolver,
		Service:  service,
	}
}

// recipientTimeout is the configured per-recipient bound, or the client's
// worst-case send time when none is set.
func recipientTimeout(cfg *config.Config, client notifier.Client) time.Duration {
	if cfg.Notify.RecipientTimeout > 0 {
		return cfg.Notify.RecipientTimeout
	}
	if tc, ok := client.(*notifier.TelegramClient); ok {
		return tc.MaxSendDuration()
	}
	return notifier.DefaultTelegramConfig().MaxSendDuration()
}
