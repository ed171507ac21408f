package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"perfumery-notify/internal/config"
	workerPkg "perfumery-notify/internal/infra/worker"
	"perfumery-notify/internal/observability/logging"
	"perfumery-notify/internal/observability/slo"
	"perfumery-notify/internal/observability/tracing"
	"perfumery-notify/internal/service/auth"
	"perfumery-notify/internal/usecase/orderwatch"
)

const credentialCheckTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	workerMetrics := workerPkg.NewWorkerMetrics()
	reportFallbacks(logger, cfg, workerMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    "perfumery-notify-worker",
		ServiceVersion: cfg.Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to set up tracing", slog.Any("error", err))
		os.Exit(1)
	}

	deps, err := wire(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to initialise worker", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.close(logger)

	tracker := slo.NewTracker(slo.DefaultWindow)
	guard := orderwatch.NewGuard(deps.feed, deps.Service, deps.deduper, orderwatch.Config{
		Freshness: cfg.Feed.Freshness,
		DedupeTTL: cfg.Feed.DedupeTTL,
		SLO:       tracker,
	})

	startMetricsServer(ctx, logger, cfg.Server.MetricsPort, deps.Service)

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", cfg.Server.HealthPort), logger)
	if deps.db != nil {
		healthServer.AddCheck("database", deps.db.Breaker.PingContext)
	}
	healthServer.AddCheck("order_watch", func(context.Context) error {
		if !guard.Active() {
			return errors.New("not watching orders")
		}
		return nil
	})
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	scheduler := cron.New(cron.WithLocation(cfg.Notify.Location()))
	if cfg.Telegram.Enabled {
		check := workerMetrics.Job(ctx, "telegram_credential_check", credentialCheckTimeout, logger,
			credentialCheck(deps.Resolver, deps.Client))
		if _, err := scheduler.AddFunc(cfg.Telegram.CheckCron, check); err != nil {
			logger.Error("failed to schedule credential check", slog.Any("error", err))
			os.Exit(1)
		}
		// Check once at startup so a bad token shows up before the first order.
		go check()
	}
	scheduler.Start()

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("failed to create token issuer", slog.Any("error", err))
		os.Exit(1)
	}
	watcher := auth.NewSessionWatcher(func(context.Context) (auth.Identity, error) {
		_, id, err := tokens.Issue(cfg.Auth.WorkerSubject, auth.RoleService)
		return id, err
	}, 30*time.Second)

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("feed_driver", cfg.Feed.Driver),
		slog.Bool("telegram_enabled", cfg.Telegram.Enabled),
		slog.String("version", cfg.Version))

	if err := guard.Run(ctx, watcher.Watch(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("order watcher stopped", slog.Any("error", err))
	}

	logger.Info("shutting down worker")
	healthServer.SetReady(false)
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := deps.Service.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pending notifications abandoned", slog.Any("error", err))
	}
	if ratio, p95, n := tracker.Snapshot(); n > 0 {
		logger.Info("delivery objective at shutdown",
			slog.Float64("delivered_ratio", ratio),
			slog.Duration("latency_p95", p95),
			slog.Int("orders", n))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown failed", slog.Any("error", err))
	}
	logger.Info("worker stopped")
}

func reportFallbacks(logger *slog.Logger, cfg *config.Config, m *workerPkg.WorkerMetrics) {
	for _, fb := range cfg.Fallbacks() {
		logger.Warn("Configuration fallback applied", slog.String("detail", fb.String()))
		m.RecordValidationError(fb.Env)
		m.RecordFallback(fb.Env)
	}
	m.SetFallbackActive(len(cfg.Fallbacks()) > 0)
	m.RecordLoadTimestamp()
}
