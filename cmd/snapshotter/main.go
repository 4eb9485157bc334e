package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/infra"
	"github.com/samuelbaldasso/banking-core/internal/ledger"
	"github.com/samuelbaldasso/banking-core/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("snapshotter failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("snapshotter connected to postgres")

	cutoffTZ, err := cfg.SnapshotCutoffLocation()
	if err != nil {
		return err
	}

	maker := ledger.NewSnapshotMaker(
		pool,
		repository.NewAccountRepository(),
		repository.NewTransactionRepository(),
		repository.NewSnapshotRepository(),
		ledger.SystemClock{},
		domain.UUIDGenerator{},
		logger,
		cfg.SnapshotInterval,
		cutoffTZ,
	)

	return maker.Run(ctx)
}
