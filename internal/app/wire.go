package app

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/handler"
	"github.com/samuelbaldasso/banking-core/internal/infra"
	"github.com/samuelbaldasso/banking-core/internal/ledger"
	"github.com/samuelbaldasso/banking-core/internal/repository"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool   *pgxpool.Pool
	Config *infra.Config
	Logger *slog.Logger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	pool := deps.Pool
	cfg := deps.Config
	logger := deps.Logger

	// Repositories
	accountRepo := repository.NewAccountRepository()
	txRepo := repository.NewTransactionRepository()
	snapshotRepo := repository.NewSnapshotRepository()
	outboxRepo := repository.NewOutboxRepository()

	// Ledger engine
	clock := ledger.SystemClock{}
	ids := domain.UUIDGenerator{}
	engine := ledger.NewEngine(pool, accountRepo, txRepo, snapshotRepo, outboxRepo, clock, ids, logger)

	cutoffTZ, err := cfg.SnapshotCutoffLocation()
	if err != nil {
		logger.Warn("invalid snapshot cutoff zone, using UTC", "zone", cfg.SnapshotCutoffZone)
		cutoffTZ = nil
	}
	snapshotMaker := ledger.NewSnapshotMaker(pool, accountRepo, txRepo, snapshotRepo,
		clock, ids, logger, cfg.SnapshotInterval, cutoffTZ)

	// Handlers
	accountHandler := handler.NewAccountHandler(engine)
	txHandler := handler.NewTransactionHandler(engine)
	balanceHandler := handler.NewBalanceHandler(engine)
	snapshotHandler := handler.NewSnapshotHandler(snapshotMaker)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS(cfg.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)

	r.Get("/health", handler.HealthHandler(pool))
	r.Get("/actuator/health", handler.HealthHandler(pool))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", accountHandler.Create)
			r.Get("/", accountHandler.List)
			r.Get("/{id}", accountHandler.Get)
			r.Post("/{id}/block", accountHandler.Block)
			r.Post("/{id}/unblock", accountHandler.Unblock)
			r.Post("/{id}/close", accountHandler.Close)
		})

		r.Route("/balances", func(r chi.Router) {
			r.Get("/{accountId}", balanceHandler.Get)
			r.Get("/{accountId}/as-of", balanceHandler.GetAsOf)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", txHandler.Post)
			r.Get("/{id}", txHandler.Get)
			r.Post("/{id}/reverse", txHandler.Reverse)
		})

		r.Post("/snapshots", snapshotHandler.Create)
	})

	return r
}
