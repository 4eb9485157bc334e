package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/pkg/money"
)

// AccountType is the accounting classification of an account. It determines
// how debits and credits affect the balance.
type AccountType string

const (
	AccountAsset     AccountType = "ASSET"
	AccountLiability AccountType = "LIABILITY"
	AccountEquity    AccountType = "EQUITY"
	AccountRevenue   AccountType = "REVENUE"
	AccountExpense   AccountType = "EXPENSE"
)

// ValidAccountType reports whether t is one of the five classifications.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountAsset, AccountLiability, AccountEquity, AccountRevenue, AccountExpense:
		return true
	}
	return false
}

// DebitIncreases reports whether a DEBIT entry increases the balance of an
// account of this type. ASSET and EXPENSE grow on debits; LIABILITY, EQUITY
// and REVENUE grow on credits.
func (t AccountType) DebitIncreases() bool {
	return t == AccountAsset || t == AccountExpense
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive  AccountStatus = "ACTIVE"
	AccountBlocked AccountStatus = "BLOCKED"
	AccountClosed  AccountStatus = "CLOSED"
)

// Account is a financial account in the ledger.
//
// One account, one currency: the currency is fixed for the account's life.
// Accounts are never deleted, only closed. Only ACTIVE accounts accept new
// transactions.
type Account struct {
	ID        uuid.UUID     `json:"id"`
	Type      AccountType   `json:"accountType"`
	Currency  string        `json:"currency"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// NewAccount creates an ACTIVE account with the given classification and
// currency.
func NewAccount(id uuid.UUID, accountType AccountType, currency string, now time.Time) (*Account, error) {
	if !ValidAccountType(accountType) {
		return nil, ErrInvalidArg("invalid account type: " + string(accountType))
	}
	if !money.ValidCurrencyCode(currency) {
		return nil, ErrInvalidArg("invalid currency code: " + currency)
	}
	return &Account{
		ID:        id,
		Type:      accountType,
		Currency:  currency,
		Status:    AccountActive,
		CreatedAt: now,
	}, nil
}

// IsActive reports whether the account accepts new transactions.
func (a *Account) IsActive() bool { return a.Status == AccountActive }

// Block transitions ACTIVE -> BLOCKED.
func (a *Account) Block() error {
	if a.Status == AccountClosed {
		return ErrInvalidStateTransition("cannot block a closed account")
	}
	a.Status = AccountBlocked
	return nil
}

// Unblock transitions BLOCKED -> ACTIVE.
func (a *Account) Unblock() error {
	if a.Status == AccountClosed {
		return ErrInvalidStateTransition("cannot unblock a closed account")
	}
	a.Status = AccountActive
	return nil
}

// Close transitions any state to CLOSED. CLOSED is terminal.
// Zero-balance verification is intentionally not performed here.
func (a *Account) Close() error {
	a.Status = AccountClosed
	return nil
}
