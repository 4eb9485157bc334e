package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/repository"
)

// SnapshotMaker creates balance snapshots for accounts. It runs either
// periodically (Run) or on demand (CreateSnapshots).
type SnapshotMaker struct {
	db        repository.DB
	accounts  repository.AccountRepository
	txns      repository.TransactionRepository
	snapshots repository.SnapshotRepository
	clock     Clock
	ids       domain.IDGenerator
	logger    *slog.Logger

	interval time.Duration
	cutoffTZ *time.Location
}

// NewSnapshotMaker creates a snapshot maker. interval controls the periodic
// Run loop; cutoffTZ is the zone whose day boundary defines the periodic
// cutoff instant.
func NewSnapshotMaker(
	db repository.DB,
	accounts repository.AccountRepository,
	txns repository.TransactionRepository,
	snapshots repository.SnapshotRepository,
	clock Clock,
	ids domain.IDGenerator,
	logger *slog.Logger,
	interval time.Duration,
	cutoffTZ *time.Location,
) *SnapshotMaker {
	if cutoffTZ == nil {
		cutoffTZ = time.UTC
	}
	return &SnapshotMaker{
		db:        db,
		accounts:  accounts,
		txns:      txns,
		snapshots: snapshots,
		clock:     clock,
		ids:       ids,
		logger:    logger,
		interval:  interval,
		cutoffTZ:  cutoffTZ,
	}
}

// SnapshotSummary reports the outcome of one CreateSnapshots pass.
type SnapshotSummary struct {
	Cutoff   time.Time `json:"cutoff"`
	Created  int       `json:"created"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Accounts int       `json:"accounts"`
}

// CreateSnapshots computes and stores a balance snapshot at the cutoff for
// every ACTIVE account. Each account gets its own transaction so one failing
// account never blocks the rest. Accounts that already have a snapshot at
// exactly the cutoff are skipped, which makes the pass safe to re-run.
func (s *SnapshotMaker) CreateSnapshots(ctx context.Context, cutoff time.Time) (*SnapshotSummary, error) {
	now := s.clock.Now()
	if cutoff.After(now) {
		return nil, domain.ErrInvalidArg("snapshot cutoff cannot be in the future")
	}

	active, err := s.accounts.ListByStatus(ctx, s.db, domain.AccountActive)
	if err != nil {
		return nil, wrapCtxErr("create snapshots", err)
	}

	summary := &SnapshotSummary{Cutoff: cutoff, Accounts: len(active)}
	for i := range active {
		created, err := s.CreateSnapshotForAccount(ctx, &active[i], cutoff)
		switch {
		case err != nil:
			summary.Failed++
			s.logger.Error("snapshot failed for account",
				"account_id", active[i].ID, "cutoff", cutoff, "error", err)
		case created:
			summary.Created++
		default:
			summary.Skipped++
		}
	}

	s.logger.Info("snapshot pass complete",
		"cutoff", cutoff, "accounts", summary.Accounts,
		"created", summary.Created, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// CreateSnapshotForAccountID snapshots a single account at the cutoff.
func (s *SnapshotMaker) CreateSnapshotForAccountID(ctx context.Context, accountID uuid.UUID, cutoff time.Time) (*SnapshotSummary, error) {
	if cutoff.After(s.clock.Now()) {
		return nil, domain.ErrInvalidArg("snapshot cutoff cannot be in the future")
	}

	account, err := s.accounts.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, wrapCtxErr("create snapshot", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound(accountID.String())
	}

	summary := &SnapshotSummary{Cutoff: cutoff, Accounts: 1}
	created, err := s.CreateSnapshotForAccount(ctx, account, cutoff)
	if err != nil {
		return nil, wrapCtxErr("create snapshot", err)
	}
	if created {
		summary.Created++
	} else {
		summary.Skipped++
	}
	return summary, nil
}

// CreateSnapshotForAccount snapshots one account at the cutoff inside its own
// transaction. Returns false with a nil error if a snapshot at exactly the
// cutoff already exists.
func (s *SnapshotMaker) CreateSnapshotForAccount(ctx context.Context, account *domain.Account, cutoff time.Time) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	exists, err := s.snapshots.ExistsAt(ctx, tx, account.ID, cutoff)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	balance, lastEntryID, err := computeBalance(ctx, tx, s.txns, s.snapshots, account, cutoff)
	if err != nil {
		return false, err
	}

	snapshot, err := domain.NewBalanceSnapshot(
		s.ids.NewID(), account.ID, balance, cutoff, s.clock.Now(), lastEntryID)
	if err != nil {
		return false, err
	}
	if err := s.snapshots.Insert(ctx, tx, snapshot); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("snapshot created",
		"account_id", account.ID, "cutoff", cutoff, "balance", balance.String())
	return true, nil
}

// Run executes a snapshot pass every interval until the context is canceled.
// Each pass uses the end of the previous day in the configured zone as its
// cutoff, so re-runs within the same day are no-ops.
func (s *SnapshotMaker) Run(ctx context.Context) error {
	s.logger.Info("snapshot maker started",
		"interval", s.interval, "cutoff_zone", s.cutoffTZ.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("snapshot maker stopping")
			return ctx.Err()
		case <-ticker.C:
			cutoff := s.previousDayEnd()
			if _, err := s.CreateSnapshots(ctx, cutoff); err != nil {
				s.logger.Error("snapshot pass failed", "cutoff", cutoff, "error", err)
			}
		}
	}
}

// previousDayEnd returns the last instant before today's midnight in the
// configured zone, as UTC.
func (s *SnapshotMaker) previousDayEnd() time.Time {
	now := s.clock.Now().In(s.cutoffTZ)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cutoffTZ)
	return midnight.Add(-time.Nanosecond).UTC()
}
