package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"perfumery-notify/internal/bootstrap"
	"perfumery-notify/internal/config"
	"perfumery-notify/internal/infra/dedupe"
	"perfumery-notify/internal/infra/feed"
	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/resilience/retry"
	"perfumery-notify/internal/usecase/orderwatch"
)

// dependencies holds everything main wires and later releases.
type dependencies struct {
	db    *bootstrap.Database
	redis *redis.Client

	*bootstrap.Notification
	feed    repository.OrderFeed
	deduper orderwatch.Deduper
}

func wire(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*dependencies, error) {
	d := &dependencies{}

	var err error
	if d.db, err = bootstrap.OpenDatabase(ctx, cfg.Database, "worker"); err != nil {
		return nil, err
	}

	src, chats, err := bootstrap.SettingsSources(cfg, d.db)
	if err != nil {
		d.close(logger)
		return nil, err
	}
	d.Notification = bootstrap.NewNotification(cfg, src, chats, logger)

	d.feed, err = feed.New(feed.Config{
		Driver:         cfg.Feed.Driver,
		DatabaseURL:    cfg.Database.URL,
		Channel:        cfg.Feed.Channel,
		KafkaBrokers:   cfg.Feed.KafkaBrokers,
		KafkaTopic:     cfg.Feed.KafkaTopic,
		KafkaGroupID:   cfg.Feed.KafkaGroupID,
		RabbitURL:      cfg.Feed.RabbitURL,
		RabbitQueue:    cfg.Feed.RabbitQueue,
		RabbitPrefetch: cfg.Feed.RabbitPrefetch,
	}, retry.ReconnectPolicy())
	if err != nil {
		d.close(logger)
		return nil, fmt.Errorf("order feed: %w", err)
	}

	if cfg.Redis.Addr != "" {
		deduper, client, err := dedupe.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			d.close(logger)
			return nil, err
		}
		d.deduper, d.redis = deduper, client
		logger.Info("shared dedupe store enabled", slog.String("addr", cfg.Redis.Addr))
	} else {
		d.deduper = dedupe.NewMemory()
	}

	return d, nil
}

func (d *dependencies) close(logger *slog.Logger) {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logger.Warn("failed to close redis", slog.Any("error", err))
		}
	}
	if err := d.db.Close(); err != nil {
		logger.Error("failed to close database", slog.Any("error", err))
	}
}
