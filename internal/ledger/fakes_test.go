package ledger

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/repository"
	"github.com/stretchr/testify/require"
)

// fakeTx satisfies pgx.Tx through embedding; only Commit and Rollback are
// implemented. The in-memory repositories never touch the database handle.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

// fakeDB satisfies repository.DB for in-memory tests.
type fakeDB struct{}

func (fakeDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	panic("fakeDB: Exec not expected")
}
func (fakeDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	panic("fakeDB: Query not expected")
}
func (fakeDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	panic("fakeDB: QueryRow not expected")
}
func (fakeDB) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock { return &testClock{now: now} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- in-memory repositories ---

type memAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]domain.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[uuid.UUID]domain.Account)}
}

func (m *memAccounts) Create(_ context.Context, _ repository.DBTX, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = *account
	return nil
}

func (m *memAccounts) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := a
	return &copied, nil
}

func (m *memAccounts) LockForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	return m.FindByID(ctx, nil, id)
}

func (m *memAccounts) List(_ context.Context, _ repository.DBTX, limit, offset int) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]domain.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memAccounts) ListByStatus(_ context.Context, _ repository.DBTX, status domain.AccountStatus) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Account
	for _, a := range m.accounts {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memAccounts) UpdateStatus(_ context.Context, _ repository.DBTX, id uuid.UUID, status domain.AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound(id.String())
	}
	a.Status = status
	m.accounts[id] = a
	return nil
}

type memTxns struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]domain.Transaction
	byExternal map[string]uuid.UUID

	// hideFromFirstRead simulates a concurrent writer winning the race: the
	// first FindByExternalID call for this external id reports no row even
	// though the row exists.
	hideFromFirstRead map[string]bool

	// insertFailures is a queue of errors returned by Insert before inserts
	// succeed again; used to simulate store aborts.
	insertFailures []error
}

func newMemTxns() *memTxns {
	return &memTxns{
		byID:              make(map[uuid.UUID]domain.Transaction),
		byExternal:        make(map[string]uuid.UUID),
		hideFromFirstRead: make(map[string]bool),
	}
}

func (m *memTxns) FindByExternalID(_ context.Context, _ repository.DBTX, externalID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideFromFirstRead[externalID] {
		m.hideFromFirstRead[externalID] = false
		return nil, nil
	}
	id, ok := m.byExternal[externalID]
	if !ok {
		return nil, nil
	}
	t := m.byID[id]
	return cloneTxn(t), nil
}

func (m *memTxns) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneTxn(t), nil
}

func (m *memTxns) Insert(_ context.Context, _ repository.DBTX, txn *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.insertFailures) > 0 {
		err := m.insertFailures[0]
		m.insertFailures = m.insertFailures[1:]
		return err
	}
	if _, ok := m.byExternal[txn.ExternalID]; ok {
		return domain.ErrDuplicateExternalID(txn.ExternalID)
	}
	m.byID[txn.ID] = *cloneTxn(*txn)
	m.byExternal[txn.ExternalID] = txn.ID
	return nil
}

func (m *memTxns) UpdateStatus(_ context.Context, _ repository.DBTX, id uuid.UUID, status domain.TransactionStatus, reversalID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return domain.ErrTransactionNotFound(id.String())
	}
	t.Status = status
	if reversalID != nil {
		t.ReversalTransactionID = reversalID
	}
	m.byID[id] = t
	return nil
}

func (m *memTxns) FindPostedEntries(_ context.Context, _ repository.DBTX, accountID uuid.UUID, after, until *time.Time) ([]domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Entry
	for _, t := range m.byID {
		if t.Status != domain.TxPosted && t.Status != domain.TxReversed {
			continue
		}
		for _, e := range t.Entries {
			if e.AccountID != accountID {
				continue
			}
			if after != nil && !e.EventTime.After(*after) {
				continue
			}
			if until != nil && e.EventTime.After(*until) {
				continue
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out, nil
}

func cloneTxn(t domain.Transaction) *domain.Transaction {
	copied := t
	copied.Entries = append([]domain.Entry(nil), t.Entries...)
	return &copied
}

type memSnapshots struct {
	mu        sync.Mutex
	snapshots []domain.BalanceSnapshot
}

func newMemSnapshots() *memSnapshots { return &memSnapshots{} }

func (m *memSnapshots) Insert(_ context.Context, _ repository.DBTX, snapshot *domain.BalanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, *snapshot)
	return nil
}

func (m *memSnapshots) FindLatest(_ context.Context, _ repository.DBTX, accountID uuid.UUID, atOrBefore *time.Time) (*domain.BalanceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.BalanceSnapshot
	for i := range m.snapshots {
		s := m.snapshots[i]
		if s.AccountID != accountID {
			continue
		}
		if atOrBefore != nil && s.SnapshotTime.After(*atOrBefore) {
			continue
		}
		if best == nil || s.SnapshotTime.After(best.SnapshotTime) {
			copied := s
			best = &copied
		}
	}
	return best, nil
}

func (m *memSnapshots) ExistsAt(_ context.Context, _ repository.DBTX, accountID uuid.UUID, snapshotTime time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots {
		if s.AccountID == accountID && s.SnapshotTime.Equal(snapshotTime) {
			return true, nil
		}
	}
	return false, nil
}

type memOutbox struct {
	mu      sync.Mutex
	records []domain.OutboxRecord
}

func newMemOutbox() *memOutbox { return &memOutbox{} }

func (m *memOutbox) Insert(_ context.Context, _ repository.DBTX, record *domain.OutboxRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *record)
	return nil
}

func (m *memOutbox) FetchPending(_ context.Context, _ pgx.Tx, limit int) ([]domain.OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OutboxRecord
	for _, r := range m.records {
		if r.Status != domain.OutboxPending {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memOutbox) Update(_ context.Context, _ repository.DBTX, record *domain.OutboxRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == record.ID {
			m.records[i] = *record
			return nil
		}
	}
	return domain.ErrInternal("outbox record not found", nil)
}

func (m *memOutbox) CountByStatus(_ context.Context, _ repository.DBTX, status domain.OutboxStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.records {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memOutbox) byEventType(eventType string) []domain.OutboxRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OutboxRecord
	for _, r := range m.records {
		if r.EventType == eventType {
			out = append(out, r)
		}
	}
	return out
}

// --- test environment ---

type testEnv struct {
	engine    *Engine
	accounts  *memAccounts
	txns      *memTxns
	snapshots *memSnapshots
	outbox    *memOutbox
	clock     *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		accounts:  newMemAccounts(),
		txns:      newMemTxns(),
		snapshots: newMemSnapshots(),
		outbox:    newMemOutbox(),
		clock:     newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.engine = NewEngine(fakeDB{}, env.accounts, env.txns, env.snapshots, env.outbox,
		env.clock, domain.UUIDGenerator{}, logger)
	return env
}

func (env *testEnv) newAccount(t *testing.T, accountType domain.AccountType, currency string) *domain.Account {
	t.Helper()
	account, err := env.engine.CreateAccount(context.Background(), accountType, currency)
	require.NoError(t, err)
	return account
}

func (env *testEnv) snapshotMaker() *SnapshotMaker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSnapshotMaker(fakeDB{}, env.accounts, env.txns, env.snapshots,
		env.clock, domain.UUIDGenerator{}, logger, time.Hour, time.UTC)
}
