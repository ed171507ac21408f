package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"perfumery-notify/internal/bootstrap"
	"perfumery-notify/internal/config"
	hauth "perfumery-notify/internal/handler/http/auth"
	"perfumery-notify/internal/observability/logging"
	"perfumery-notify/internal/observability/tracing"
	pkgconfig "perfumery-notify/internal/pkg/config"
	authservice "perfumery-notify/internal/service/auth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)
	reportFallbacks(logger, cfg, pkgconfig.NewConfigMetrics("api"))

	if cfg.Database.URL == "" {
		logger.Error("DATABASE_URL must be set: orders and contact messages are stored in postgres")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    "perfumery-notify-api",
		ServiceVersion: cfg.Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to set up tracing", slog.Any("error", err))
		os.Exit(1)
	}

	database, err := bootstrap.OpenDatabase(ctx, cfg.Database, "api")
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	src, chats, err := bootstrap.SettingsSources(cfg, database)
	if err != nil {
		logger.Error("failed to load settings", slog.Any("error", err))
		os.Exit(1)
	}
	notification := bootstrap.NewNotification(cfg, src, chats, logger)

	authSvc, err := newAuthService(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise authentication", slog.Any("error", err))
		os.Exit(1)
	}

	handler := newRouter(routerDeps{
		cfg:          cfg,
		logger:       logger,
		database:     database,
		auth:         authSvc,
		notification: notification,
	})

	srv := &http.Server{
		Addr:              cfg.Server.APIAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.Server.APIAddr),
			slog.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	if err := notification.Service.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pending notifications abandoned", slog.Any("error", err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("failed to flush traces", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

// newAuthService builds operator login from the environment accounts and
// the security policy. The admin account is mandatory; a bad viewer
// account only disables the viewer role.
func newAuthService(cfg *config.Config, logger *slog.Logger) (*authservice.AuthService, error) {
	policy := config.DefaultSecurityPolicy()
	ttl := cfg.Auth.TokenTTL
	if cfg.Auth.SecurityFile != "" {
		var err error
		if policy, err = config.LoadSecurityPolicy(cfg.Auth.SecurityFile); err != nil {
			return nil, err
		}
		ttl = policy.TokenTTL()
	}

	admin := hauth.User{Name: cfg.Auth.AdminUser, Password: cfg.Auth.AdminPassword, Role: authservice.RoleAdmin}
	if err := hauth.ValidateAdmin(admin); err != nil {
		return nil, err
	}
	users := []hauth.User{admin}
	viewer := hauth.User{Name: cfg.Auth.ViewerUser, Password: cfg.Auth.ViewerPassword, Role: authservice.RoleViewer}
	if v, ok := hauth.ValidateViewer(admin, viewer, logger); ok {
		users = append(users, v)
	}

	tokens, err := authservice.NewTokens(cfg.Auth.JWTSecret, ttl)
	if err != nil {
		return nil, err
	}
	provider := hauth.NewStaticProvider(users, policy.MinPasswordLength(), policy.WeakPasswords())
	return authservice.NewAuthService(provider, tokens, policy.PublicEndpoints()), nil
}

func reportFallbacks(logger *slog.Logger, cfg *config.Config, m *pkgconfig.ConfigMetrics) {
	for _, fb := range cfg.Fallbacks() {
		logger.Warn("Configuration fallback applied", slog.String("detail", fb.String()))
		m.RecordValidationError(fb.Env)
		m.RecordFallback(fb.Env)
	}
	m.SetFallbackActive(len(cfg.Fallbacks()) > 0)
	m.RecordLoadTimestamp()
}
