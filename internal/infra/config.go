package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"ledger"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"ledger"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"ledger"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"8080"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Topics
	TopicTransactionPosted   string `env:"TOPIC_TRANSACTION_POSTED" envDefault:"transaction-posted"`
	TopicTransactionReversed string `env:"TOPIC_TRANSACTION_REVERSED" envDefault:"transaction-reversed"`

	// Outbox relay
	OutboxPollIntervalMS      int `env:"OUTBOX_POLL_INTERVAL_MS" envDefault:"5000"`
	OutboxBatchSize           int `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxMaxAttempts         int `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"5"`
	OutboxPerAttemptTimeoutMS int `env:"OUTBOX_PER_ATTEMPT_TIMEOUT_MS" envDefault:"5000"`
	OutboxHealthLogIntervalMS int `env:"OUTBOX_HEALTH_LOG_INTERVAL_MS" envDefault:"60000"`

	// Snapshots
	SnapshotInterval   time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"24h"`
	SnapshotCutoffZone string        `env:"SNAPSHOT_CUTOFF_ZONE" envDefault:"UTC"`

	// Store
	StoreIsolation string `env:"STORE_ISOLATION" envDefault:"serializable"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// OutboxPollInterval returns the relay poll interval as a duration.
func (c *Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollIntervalMS) * time.Millisecond
}

// OutboxPerAttemptTimeout returns the per-publish timeout as a duration.
func (c *Config) OutboxPerAttemptTimeout() time.Duration {
	return time.Duration(c.OutboxPerAttemptTimeoutMS) * time.Millisecond
}

// OutboxHealthLogInterval returns the health log interval as a duration.
func (c *Config) OutboxHealthLogInterval() time.Duration {
	return time.Duration(c.OutboxHealthLogIntervalMS) * time.Millisecond
}

// IsolationLevel maps the configured store isolation to the PostgreSQL
// default_transaction_isolation setting. "snapshot" is PostgreSQL's
// REPEATABLE READ.
func (c *Config) IsolationLevel() (string, error) {
	switch c.StoreIsolation {
	case "serializable":
		return "serializable", nil
	case "snapshot":
		return "repeatable read", nil
	}
	return "", fmt.Errorf("unsupported store isolation %q", c.StoreIsolation)
}

// SnapshotCutoffLocation resolves the configured snapshot cutoff zone.
func (c *Config) SnapshotCutoffLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.SnapshotCutoffZone)
	if err != nil {
		return nil, fmt.Errorf("load snapshot cutoff zone %q: %w", c.SnapshotCutoffZone, err)
	}
	return loc, nil
}
