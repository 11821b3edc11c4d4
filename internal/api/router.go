package api

import (
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/api/handler"
	"github.com/ayo6706/wallet-ledger/internal/api/middleware"
	"github.com/ayo6706/wallet-ledger/internal/api/spec"
	"github.com/ayo6706/wallet-ledger/internal/config"
	"github.com/ayo6706/wallet-ledger/internal/idempotency"
	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Users    *service.UserService
	Accounts *service.AccountService
	Funds    *service.FundsService
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	services  Services
	idemStore *idempotency.Store
	redis     redis.Cmdable
	checks    map[string]handler.Pinger
}

// NewRouter wires handlers and middleware. idemStore and redis may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, services Services, idemStore *idempotency.Store, redis redis.Cmdable, checks map[string]handler.Pinger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		logger:    logger,
		services:  services,
		idemStore: idemStore,
		redis:     redis,
		checks:    checks,
	}
}

func (api *Router) Routes() chi.Router {
	middleware.SetJWTSecret(api.cfg.JWTSecret)
	middleware.SetJWTValidation(api.cfg.JWTIssuer, api.cfg.JWTAudience)
	handler.SetHideInternalErrors(api.cfg.IsProduction())

	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	authHandler := handler.NewAuthHandler(api.services.Users)
	userHandler := handler.NewUserHandler(api.services.Users)
	accountHandler := handler.NewAccountHandler(api.services.Accounts)
	fundsHandler := handler.NewFundsHandler(api.services.Funds)
	webhookHandler := handler.NewWebhookHandler(api.services.Funds)
	healthHandler := handler.NewHealthHandler(api.checks)

	publicLimiter := middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS, api.redis)
	principalLimiter := middleware.PrincipalRateLimiter(api.cfg.RateLimitRPS, api.redis)
	idempotent := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(publicLimiter)
			r.Post("/auth/signup", authHandler.Signup)
			r.Post("/auth/login", authHandler.Login)
		})

		r.Post("/webhooks/{provider}", webhookHandler.Handle)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware)

			r.Get("/users/me", userHandler.Me)
			r.Get("/accounts", accountHandler.ListAccounts)
			r.Post("/accounts", accountHandler.CreateAccount)
			r.Get("/accounts/transactions", accountHandler.ListTransactions)

			r.Group(func(r chi.Router) {
				r.Use(principalLimiter)
				r.Post("/accounts/deposit", fundsHandler.Deposit)
				r.With(idempotent).Post("/accounts/withdraw", fundsHandler.Withdraw)
				r.With(idempotent).Post("/accounts/transfer", fundsHandler.Transfer)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.RespondError(w, r, http.StatusNotFound, "route/not-found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handler.RespondError(w, r, http.StatusMethodNotAllowed, "route/method-not-allowed", "method not allowed")
	})
	return r
}
