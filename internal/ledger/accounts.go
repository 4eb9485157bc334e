package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/internal/domain"
)

// CreateAccount creates an ACTIVE account with the given classification and
// currency.
func (e *Engine) CreateAccount(ctx context.Context, accountType domain.AccountType, currency string) (*domain.Account, error) {
	account, err := domain.NewAccount(e.ids.NewID(), accountType, currency, e.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := e.accounts.Create(ctx, e.db, account); err != nil {
		return nil, wrapCtxErr("create account", err)
	}
	e.logger.Info("created account",
		"account_id", account.ID, "account_type", account.Type, "currency", account.Currency)
	return account, nil
}

// GetAccount returns an account by id.
func (e *Engine) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := e.accounts.FindByID(ctx, e.db, id)
	if err != nil {
		return nil, wrapCtxErr("get account", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound(id.String())
	}
	return account, nil
}

// ListAccounts returns a page of accounts, newest first.
func (e *Engine) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	accounts, err := e.accounts.List(ctx, e.db, limit, offset)
	if err != nil {
		return nil, wrapCtxErr("list accounts", err)
	}
	return accounts, nil
}

// BlockAccount transitions an account to BLOCKED. Blocked accounts reject
// new transactions but remain visible for balance queries.
func (e *Engine) BlockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return e.changeAccountStatus(ctx, id, (*domain.Account).Block)
}

// UnblockAccount transitions a BLOCKED account back to ACTIVE.
func (e *Engine) UnblockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return e.changeAccountStatus(ctx, id, (*domain.Account).Unblock)
}

// CloseAccount transitions an account to CLOSED. The transition is terminal.
func (e *Engine) CloseAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return e.changeAccountStatus(ctx, id, (*domain.Account).Close)
}

// changeAccountStatus applies a state transition under a row lock so
// concurrent posts observe either the old or the new status, never a torn
// one.
func (e *Engine) changeAccountStatus(ctx context.Context, id uuid.UUID, transition func(*domain.Account) error) (*domain.Account, error) {
	return retrySerializable(e.logger, "change account status", func() (*domain.Account, error) {
		return e.changeStatusOnce(ctx, id, transition)
	})
}

func (e *Engine) changeStatusOnce(ctx context.Context, id uuid.UUID, transition func(*domain.Account) error) (*domain.Account, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, wrapCtxErr("change account status", err)
	}
	defer tx.Rollback(ctx)

	account, err := e.accounts.LockForUpdate(ctx, tx, id)
	if err != nil {
		return nil, wrapCtxErr("change account status", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound(id.String())
	}

	if err := transition(account); err != nil {
		return nil, err
	}
	if err := e.accounts.UpdateStatus(ctx, tx, account.ID, account.Status); err != nil {
		return nil, wrapCtxErr("change account status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, wrapCtxErr("change account status", err)
	}

	e.logger.Info("account status changed", "account_id", account.ID, "status", account.Status)
	return account, nil
}
