package repository

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startTestDB boots a throwaway Postgres container with the schema applied.
// Skipped in -short mode and when Docker is unavailable.
func startTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ledger_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(migrationScripts(t)...),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(120*time.Second),
		),
	)
	if err != nil {
		t.Skipf("could not start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	return pool
}

// migrationScripts returns the .up.sql files from db/migrations in order.
func migrationScripts(t *testing.T) []string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok)

	migrationsDir := filepath.Join(filepath.Dir(filepath.Dir(filepath.Dir(filename))), "db", "migrations")
	files, err := os.ReadDir(migrationsDir)
	require.NoError(t, err, "migrations directory not found: %s", migrationsDir)

	var scripts []string
	for _, f := range files {
		if strings.HasSuffix(f.Name(), ".up.sql") {
			scripts = append(scripts, filepath.Join(migrationsDir, f.Name()))
		}
	}
	sort.Strings(scripts)
	require.NotEmpty(t, scripts)
	return scripts
}

func createTestAccount(t *testing.T, pool *pgxpool.Pool, accountType domain.AccountType, currency string) *domain.Account {
	t.Helper()
	account, err := domain.NewAccount(uuid.New(), accountType, currency, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, NewAccountRepository().Create(context.Background(), pool, account))
	return account
}

func postedTransaction(externalID string, debitAccount, creditAccount uuid.UUID, amount money.Money, eventTime time.Time) *domain.Transaction {
	txnID := uuid.New()
	return &domain.Transaction{
		ID:         txnID,
		ExternalID: externalID,
		EventType:  domain.EventTransfer,
		Status:     domain.TxPosted,
		CreatedAt:  eventTime,
		Entries: []domain.Entry{
			{
				ID: uuid.New(), TransactionID: txnID, AccountID: debitAccount,
				Amount: amount, Side: domain.Debit, EventType: domain.EventTransfer,
				EventTime: eventTime, RecordedAt: eventTime,
			},
			{
				ID: uuid.New(), TransactionID: txnID, AccountID: creditAccount,
				Amount: amount, Side: domain.Credit, EventType: domain.EventTransfer,
				EventTime: eventTime, RecordedAt: eventTime,
			},
		},
	}
}

func TestRepositoriesIntegration(t *testing.T) {
	pool := startTestDB(t)
	ctx := context.Background()

	t.Run("account round trip", func(t *testing.T) {
		repo := NewAccountRepository()
		account := createTestAccount(t, pool, domain.AccountAsset, "BRL")

		found, err := repo.FindByID(ctx, pool, account.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, account.ID, found.ID)
		assert.Equal(t, domain.AccountAsset, found.Type)
		assert.Equal(t, "BRL", found.Currency)
		assert.Equal(t, domain.AccountActive, found.Status)

		require.NoError(t, repo.UpdateStatus(ctx, pool, account.ID, domain.AccountBlocked))
		found, err = repo.FindByID(ctx, pool, account.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AccountBlocked, found.Status)

		blocked, err := repo.ListByStatus(ctx, pool, domain.AccountBlocked)
		require.NoError(t, err)
		require.Len(t, blocked, 1)
		assert.Equal(t, account.ID, blocked[0].ID)

		missing, err := repo.FindByID(ctx, pool, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, missing)

		err = repo.UpdateStatus(ctx, pool, uuid.New(), domain.AccountClosed)
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "ACCOUNT_NOT_FOUND", appErr.Kind)
	})

	t.Run("lock for update inside a transaction", func(t *testing.T) {
		repo := NewAccountRepository()
		account := createTestAccount(t, pool, domain.AccountLiability, "BRL")

		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		locked, err := repo.LockForUpdate(ctx, tx, account.ID)
		require.NoError(t, err)
		require.NotNil(t, locked)
		assert.Equal(t, account.ID, locked.ID)

		none, err := repo.LockForUpdate(ctx, tx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, none)
		require.NoError(t, tx.Commit(ctx))
	})

	t.Run("transaction insert and lookup with entries", func(t *testing.T) {
		repo := NewTransactionRepository()
		cash := createTestAccount(t, pool, domain.AccountAsset, "BRL")
		dep := createTestAccount(t, pool, domain.AccountLiability, "BRL")

		amount := money.MustNew("150.00", "BRL")
		txn := postedTransaction("ext-lookup-1", cash.ID, dep.ID, amount, time.Now().UTC())
		require.NoError(t, repo.Insert(ctx, pool, txn))

		byExternal, err := repo.FindByExternalID(ctx, pool, "ext-lookup-1")
		require.NoError(t, err)
		require.NotNil(t, byExternal)
		assert.Equal(t, txn.ID, byExternal.ID)
		require.Len(t, byExternal.Entries, 2)
		assert.True(t, amount.Equal(byExternal.Entries[0].Amount))

		byID, err := repo.FindByID(ctx, pool, txn.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "ext-lookup-1", byID.ExternalID)

		missing, err := repo.FindByExternalID(ctx, pool, "no-such-external-id")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("duplicate external id is rejected by the unique index", func(t *testing.T) {
		repo := NewTransactionRepository()
		cash := createTestAccount(t, pool, domain.AccountAsset, "BRL")
		dep := createTestAccount(t, pool, domain.AccountLiability, "BRL")
		amount := money.MustNew("10.00", "BRL")

		first := postedTransaction("ext-dup-1", cash.ID, dep.ID, amount, time.Now().UTC())
		require.NoError(t, repo.Insert(ctx, pool, first))

		second := postedTransaction("ext-dup-1", cash.ID, dep.ID, amount, time.Now().UTC())
		err := repo.Insert(ctx, pool, second)
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "DUPLICATE_EXTERNAL_ID", appErr.Kind)
	})

	t.Run("posted entries honor time bounds and status filter", func(t *testing.T) {
		repo := NewTransactionRepository()
		cash := createTestAccount(t, pool, domain.AccountAsset, "BRL")
		dep := createTestAccount(t, pool, domain.AccountLiability, "BRL")
		amount := money.MustNew("25.00", "BRL")

		base := time.Now().UTC().Truncate(time.Millisecond)
		early := postedTransaction("ext-bounds-1", cash.ID, dep.ID, amount, base)
		late := postedTransaction("ext-bounds-2", cash.ID, dep.ID, amount, base.Add(time.Hour))
		pending := postedTransaction("ext-bounds-3", cash.ID, dep.ID, amount, base.Add(2*time.Hour))
		pending.Status = domain.TxPending
		require.NoError(t, repo.Insert(ctx, pool, early))
		require.NoError(t, repo.Insert(ctx, pool, late))
		require.NoError(t, repo.Insert(ctx, pool, pending))

		// No bounds: both effective transactions, the PENDING one never shows.
		entries, err := repo.FindPostedEntries(ctx, pool, cash.ID, nil, nil)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.True(t, entries[0].EventTime.Before(entries[1].EventTime))

		// after is strict, until is inclusive.
		entries, err = repo.FindPostedEntries(ctx, pool, cash.ID, &base, nil)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, late.ID, entries[0].TransactionID)

		until := base
		entries, err = repo.FindPostedEntries(ctx, pool, cash.ID, nil, &until)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, early.ID, entries[0].TransactionID)

		// Reversed transactions stay balance-effective.
		require.NoError(t, repo.UpdateStatus(ctx, pool, early.ID, domain.TxReversed, nil))
		entries, err = repo.FindPostedEntries(ctx, pool, cash.ID, nil, nil)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("transaction status update records the reversal link", func(t *testing.T) {
		repo := NewTransactionRepository()
		cash := createTestAccount(t, pool, domain.AccountAsset, "BRL")
		dep := createTestAccount(t, pool, domain.AccountLiability, "BRL")
		amount := money.MustNew("60.00", "BRL")

		original := postedTransaction("ext-rev-1", cash.ID, dep.ID, amount, time.Now().UTC())
		reversal := postedTransaction("ext-rev-2", dep.ID, cash.ID, amount, time.Now().UTC())
		require.NoError(t, repo.Insert(ctx, pool, original))
		require.NoError(t, repo.Insert(ctx, pool, reversal))

		require.NoError(t, repo.UpdateStatus(ctx, pool, original.ID, domain.TxReversed, &reversal.ID))

		found, err := repo.FindByID(ctx, pool, original.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TxReversed, found.Status)
		require.NotNil(t, found.ReversalTransactionID)
		assert.Equal(t, reversal.ID, *found.ReversalTransactionID)

		err = repo.UpdateStatus(ctx, pool, uuid.New(), domain.TxReversed, nil)
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "TRANSACTION_NOT_FOUND", appErr.Kind)
	})

	t.Run("snapshot insert and latest lookup", func(t *testing.T) {
		repo := NewSnapshotRepository()
		account := createTestAccount(t, pool, domain.AccountAsset, "BRL")

		now := time.Now().UTC().Truncate(time.Millisecond)
		older, err := domain.NewBalanceSnapshot(uuid.New(), account.ID,
			money.MustNew("100.00", "BRL"), now.Add(-2*time.Hour), now, nil)
		require.NoError(t, err)
		newer, err := domain.NewBalanceSnapshot(uuid.New(), account.ID,
			money.MustNew("250.00", "BRL"), now.Add(-time.Hour), now, nil)
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, pool, older))
		require.NoError(t, repo.Insert(ctx, pool, newer))

		latest, err := repo.FindLatest(ctx, pool, account.ID, nil)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, newer.ID, latest.ID)
		assert.Equal(t, "250", latest.Balance.Amount().String())

		bound := now.Add(-90 * time.Minute)
		bounded, err := repo.FindLatest(ctx, pool, account.ID, &bound)
		require.NoError(t, err)
		require.NotNil(t, bounded)
		assert.Equal(t, older.ID, bounded.ID)

		exists, err := repo.ExistsAt(ctx, pool, account.ID, newer.SnapshotTime)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsAt(ctx, pool, account.ID, now)
		require.NoError(t, err)
		assert.False(t, exists)

		none, err := repo.FindLatest(ctx, pool, uuid.New(), nil)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("outbox lifecycle", func(t *testing.T) {
		repo := NewOutboxRepository()
		now := time.Now().UTC().Truncate(time.Millisecond)

		record := domain.NewOutboxRecord(uuid.New(), uuid.New(),
			domain.EventTransactionPosted, []byte(`{"amount":"10"}`), now)
		require.NoError(t, repo.Insert(ctx, pool, record))

		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		fetched, err := repo.FetchPending(ctx, tx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, fetched)

		var got *domain.OutboxRecord
		for i := range fetched {
			if fetched[i].ID == record.ID {
				got = &fetched[i]
			}
		}
		require.NotNil(t, got)
		assert.Equal(t, domain.OutboxPending, got.Status)
		assert.JSONEq(t, `{"amount":"10"}`, string(got.Payload))

		// Locked rows are invisible to a concurrent relay.
		other, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer other.Rollback(ctx)
		concurrent, err := repo.FetchPending(ctx, other, 10)
		require.NoError(t, err)
		for _, r := range concurrent {
			assert.NotEqual(t, record.ID, r.ID)
		}
		require.NoError(t, other.Rollback(ctx))

		got.MarkProcessed(now.Add(time.Second))
		require.NoError(t, repo.Update(ctx, tx, got))
		require.NoError(t, tx.Commit(ctx))

		processed, err := repo.CountByStatus(ctx, pool, domain.OutboxProcessed)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, processed, int64(1))
	})
}
