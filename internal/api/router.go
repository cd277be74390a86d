package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/toluade/factorpool/internal/api/handler"
	"github.com/toluade/factorpool/internal/api/middleware"
	"github.com/toluade/factorpool/internal/api/spec"
	"github.com/toluade/factorpool/internal/config"
	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/idempotency"
	"github.com/toluade/factorpool/internal/intent"
	"github.com/toluade/factorpool/internal/ledger"
	"go.uber.org/zap"
)

// Router wires handlers, middleware and dependencies into the HTTP API.
type Router struct {
	cfg         *config.Config
	logger      *zap.Logger
	db          *pgxpool.Pool
	redis       redis.Cmdable
	engine      *ledger.Engine
	bridge      *ledger.Bridge
	coordinator *intent.Coordinator
	idemStore   *idempotency.Store
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, redisClient redis.Cmdable, engine *ledger.Engine, bridge *ledger.Bridge, coordinator *intent.Coordinator, idemStore *idempotency.Store) *Router {
	return &Router{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		redis:       redisClient,
		engine:      engine,
		bridge:      bridge,
		coordinator: coordinator,
		idemStore:   idemStore,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	poolHandler := handler.NewPoolHandler(api.engine)
	intentHandler := handler.NewIntentHandler(api.coordinator)
	invoiceHandler := handler.NewInvoiceHandler(api.engine, api.bridge, api.coordinator)
	adminHandler := handler.NewAdminHandler(api.engine)

	// Public routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/v1/health/live", healthHandler.Live)
		r.Get("/v1/health/ready", healthHandler.Ready)
		r.Get("/v1/openapi.yaml", spec.OpenAPIHandler())
	})

	r.Handle("/v1/metrics", promhttp.Handler())

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Any authenticated identity may deposit and read pools.
		r.Post("/v1/pools/{id}/deposits", poolHandler.Deposit)
		r.Get("/v1/pools/{id}", poolHandler.GetPool)
		r.Get("/v1/pools/{id}/deposits/{depositor}", poolHandler.GetUserDeposits)
		r.Get("/v1/invoices/{id}", invoiceHandler.Get)
		r.Get("/v1/intents/{id}", intentHandler.Get)

		// Funding and repayment are operator capabilities. Mutations carry
		// the Idempotency-Key contract when the store is wired.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleOperator))
			r.Use(middleware.IdempotencyMiddleware(api.idemStore, api.logger))
			r.Post("/v1/intents", intentHandler.Create)
			r.Post("/v1/intents/{id}/fund", intentHandler.Fund)
			r.Post("/v1/intents/{id}/cancel", intentHandler.Cancel)
			r.Post("/v1/invoices/{id}/repayments", invoiceHandler.Repay)
		})

		// Recovery overrides are admin-only.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Put("/v1/admin/pools/{id}/outstanding", adminHandler.SetOutstanding)
		})
	})

	return r
}
