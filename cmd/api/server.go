package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"perfumery-notify/internal/bootstrap"
	"perfumery-notify/internal/config"
	pgRepo "perfumery-notify/internal/infra/adapter/persistence/postgres"
	hhttp "perfumery-notify/internal/handler/http"
	hauth "perfumery-notify/internal/handler/http/auth"
	"perfumery-notify/internal/handler/http/checkout"
	"perfumery-notify/internal/handler/http/contact"
	"perfumery-notify/internal/handler/http/middleware"
	"perfumery-notify/internal/handler/http/orders"
	"perfumery-notify/internal/handler/http/requestid"
	"perfumery-notify/internal/handler/http/telegram"
	"perfumery-notify/internal/observability/tracing"
	authservice "perfumery-notify/internal/service/auth"
	contactUC "perfumery-notify/internal/usecase/contact"
	orderUC "perfumery-notify/internal/usecase/order"
)

const maxRequestBody = 1 << 20

type routerDeps struct {
	cfg          *config.Config
	logger       *slog.Logger
	database     *bootstrap.Database
	auth         *authservice.AuthService
	notification *bootstrap.Notification
}

// newRouter assembles the api. Middleware order, outermost first:
// request id, recover, logging, tracing, metrics, body validation,
// security headers, CORS, authorization.
func newRouter(d routerDeps) http.Handler {
	breaker := d.database.Breaker
	orderSvc := orderUC.Service{Repo: pgRepo.NewOrderRepo(breaker), Notifier: d.notification.Service}
	contactSvc := contactUC.Service{Repo: pgRepo.NewContactMessageRepo(breaker), Notifier: d.notification.Service}

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		hhttp.Recover(d.logger),
		hhttp.Logging(d.logger),
		tracing.Middleware,
		hhttp.MetricsMiddleware,
		hhttp.InputValidation(maxRequestBody),
		middleware.SecurityHeaders(d.cfg.Server.CSPReportOnly),
		middleware.CORS(middleware.DefaultCORSConfig(d.cfg.Server.CORSAllowedOrigins, d.logger)),
		hauth.Authz(d.auth),
	)

	authLimit := hhttp.NewRateLimiter(5, time.Minute)
	r.Method(http.MethodPost, "/auth/token", authLimit.Limit(hauth.TokenHandler(d.auth)))

	r.Method(http.MethodGet, "/health", &hhttp.HealthHandler{
		DB:       d.database.SQL(),
		Breakers: d.notification.Service.Health,
		Version:  d.cfg.Version,
	})
	r.Method(http.MethodGet, "/ready", &hhttp.ReadyHandler{DB: d.database.SQL()})
	r.Method(http.MethodGet, "/live", &hhttp.LiveHandler{})
	r.Method(http.MethodGet, "/metrics", hhttp.MetricsHandler())

	publicLimit := hhttp.NewRateLimiter(d.cfg.Server.ContactRateLimit, d.cfg.Server.ContactRateWindow).Limit
	contact.Register(r, contactSvc, publicLimit)
	checkout.Register(r, orderSvc, publicLimit)

	contact.RegisterInbox(r, contactSvc)
	orders.Register(r, orderSvc, hhttp.Timeout(d.cfg.Server.RequestTimeout))
	telegram.Register(r, d.notification.Client, d.notification.Service)

	return r
}
