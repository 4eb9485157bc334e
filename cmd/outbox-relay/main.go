package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samuelbaldasso/banking-core/internal/infra"
	"github.com/samuelbaldasso/banking-core/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("outbox relay failed", "error", err)
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
	logger.Info("outbox-relay connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	relay := infra.NewOutboxRelay(pool, repository.NewOutboxRepository(), producer, logger, infra.RelayConfig{
		PollInterval:      cfg.OutboxPollInterval(),
		BatchSize:         cfg.OutboxBatchSize,
		MaxAttempts:       cfg.OutboxMaxAttempts,
		PerAttemptTimeout: cfg.OutboxPerAttemptTimeout(),
		HealthLogInterval: cfg.OutboxHealthLogInterval(),
		TopicPosted:       cfg.TopicTransactionPosted,
		TopicReversed:     cfg.TopicTransactionReversed,
	})

	return relay.Run(ctx)
}
