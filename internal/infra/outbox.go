package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/repository"
)

// RelayConfig tunes one OutboxRelay instance.
type RelayConfig struct {
	PollInterval      time.Duration
	BatchSize         int
	MaxAttempts       int
	PerAttemptTimeout time.Duration
	HealthLogInterval time.Duration

	// Event type to Kafka topic routing.
	TopicPosted   string
	TopicReversed string
}

// OutboxRelay polls the outbox_events table and publishes pending records to
// the message bus. Delivery is at-least-once: a record is marked PROCESSED
// only after the broker acknowledges the publish, so a crash between publish
// and mark yields a duplicate, never a loss.
//
// Records are fetched with FOR UPDATE SKIP LOCKED, so multiple relay
// instances never pick the same row.
type OutboxRelay struct {
	db       repository.DB
	outbox   repository.OutboxRepository
	producer Publisher
	logger   *slog.Logger
	cfg      RelayConfig

	now func() time.Time
}

// NewOutboxRelay creates a relay. Zero config fields fall back to safe
// defaults.
func NewOutboxRelay(db repository.DB, outbox repository.OutboxRepository, producer Publisher, logger *slog.Logger, cfg RelayConfig) *OutboxRelay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.PerAttemptTimeout <= 0 {
		cfg.PerAttemptTimeout = 5 * time.Second
	}
	if cfg.HealthLogInterval <= 0 {
		cfg.HealthLogInterval = time.Minute
	}
	return &OutboxRelay{
		db:       db,
		outbox:   outbox,
		producer: producer,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until the context is canceled. It also logs outbox health stats
// periodically so stuck or failed records surface in the logs.
func (r *OutboxRelay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay started",
		"poll_interval", r.cfg.PollInterval, "batch_size", r.cfg.BatchSize,
		"max_attempts", r.cfg.MaxAttempts)

	poll := time.NewTicker(r.cfg.PollInterval)
	defer poll.Stop()
	health := time.NewTicker(r.cfg.HealthLogInterval)
	defer health.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return ctx.Err()
		case <-poll.C:
			if err := r.RelayOnce(ctx); err != nil {
				r.logger.Error("outbox relay poll failed", "error", err)
			}
		case <-health.C:
			r.logHealth(ctx)
		}
	}
}

// RelayOnce processes one batch of pending records: fetch under lock,
// publish each, persist the per-record outcome, commit.
func (r *OutboxRelay) RelayOnce(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	records, err := r.outbox.FetchPending(ctx, tx, r.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch pending: %w", err)
	}
	if len(records) == 0 {
		return tx.Commit(ctx)
	}

	var published, failed int
	for i := range records {
		if err := r.relayRecord(ctx, &records[i]); err != nil {
			failed++
		} else {
			published++
		}
		if err := r.outbox.Update(ctx, tx, &records[i]); err != nil {
			return fmt.Errorf("update outbox record %s: %w", records[i].ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Debug("outbox batch relayed",
		"fetched", len(records), "published", published, "failed", failed)
	return nil
}

// relayRecord publishes one record and applies the outcome to its state.
// Publish errors count against the attempt budget; at the budget the record
// goes terminal FAILED.
func (r *OutboxRelay) relayRecord(ctx context.Context, record *domain.OutboxRecord) error {
	topic, err := r.topicFor(record.EventType)
	if err != nil {
		// Unroutable records can never succeed. Charge the whole attempt
		// budget and fail them on first sight, keeping the invariant that a
		// FAILED record has exhausted its attempts.
		record.RecordFailure(err.Error())
		if record.Attempts < r.cfg.MaxAttempts {
			record.Attempts = r.cfg.MaxAttempts
		}
		record.MarkFailed()
		r.logger.Error("outbox record unroutable",
			"record_id", record.ID, "event_type", record.EventType)
		return err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.PerAttemptTimeout)
	defer cancel()

	key := []byte(record.AggregateID.String())
	if err := r.producer.Publish(attemptCtx, topic, key, record.Payload); err != nil {
		record.RecordFailure(err.Error())
		if record.Attempts >= r.cfg.MaxAttempts {
			record.MarkFailed()
			r.logger.Error("outbox record exhausted attempts",
				"record_id", record.ID, "event_type", record.EventType,
				"attempts", record.Attempts, "error", err)
		} else {
			r.logger.Warn("outbox publish failed, will retry",
				"record_id", record.ID, "event_type", record.EventType,
				"attempts", record.Attempts, "error", err)
		}
		return err
	}

	record.MarkProcessed(r.now())
	r.logger.Info("outbox record published",
		"record_id", record.ID, "event_type", record.EventType,
		"topic", topic, "key", record.AggregateID)
	return nil
}

func (r *OutboxRelay) topicFor(eventType string) (string, error) {
	switch eventType {
	case domain.EventTransactionPosted:
		return r.cfg.TopicPosted, nil
	case domain.EventTransactionReversed:
		return r.cfg.TopicReversed, nil
	}
	return "", fmt.Errorf("no topic for event type %q", eventType)
}

// HealthStats counts outbox records by delivery state.
type HealthStats struct {
	Pending   int64 `json:"pending"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// HealthStats reads the current outbox counters.
func (r *OutboxRelay) HealthStats(ctx context.Context) (*HealthStats, error) {
	stats := &HealthStats{}
	var err error
	if stats.Pending, err = r.outbox.CountByStatus(ctx, r.db, domain.OutboxPending); err != nil {
		return nil, err
	}
	if stats.Processed, err = r.outbox.CountByStatus(ctx, r.db, domain.OutboxProcessed); err != nil {
		return nil, err
	}
	if stats.Failed, err = r.outbox.CountByStatus(ctx, r.db, domain.OutboxFailed); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *OutboxRelay) logHealth(ctx context.Context) {
	stats, err := r.HealthStats(ctx)
	if err != nil {
		r.logger.Error("outbox health stats failed", "error", err)
		return
	}
	if stats.Failed > 0 {
		r.logger.Warn("outbox has terminally failed records",
			"pending", stats.Pending, "processed", stats.Processed, "failed", stats.Failed)
		return
	}
	r.logger.Info("outbox health",
		"pending", stats.Pending, "processed", stats.Processed, "failed", stats.Failed)
}
