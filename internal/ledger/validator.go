package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/pkg/money"
)

// ValidateEntries checks the double-entry bookkeeping rules for one
// transaction's entries:
//
//  1. At least 2 entries.
//  2. All entries share the same owning transaction id.
//  3. Every currency appearing among debits appears among credits and vice
//     versa.
//  4. For each currency, the sum of debit amounts equals the sum of credit
//     amounts exactly.
//
// It is a pure function with no I/O.
func ValidateEntries(entries []domain.Entry) error {
	if len(entries) < 2 {
		return domain.ErrTooFewEntries(len(entries))
	}

	txnID := entries[0].TransactionID
	for i := range entries {
		if entries[i].TransactionID != txnID {
			return domain.ErrInvalidArg("entries belong to different transactions")
		}
		if !entries[i].Amount.IsPositive() {
			return domain.ErrInvalidArg("entry amount must be positive")
		}
	}

	debits := make(map[string]money.Money)
	credits := make(map[string]money.Money)
	for i := range entries {
		e := &entries[i]
		sums := credits
		if e.IsDebit() {
			sums = debits
		}
		cur := e.Amount.Currency()
		if total, ok := sums[cur]; ok {
			added, err := total.Add(e.Amount)
			if err != nil {
				return fmt.Errorf("sum entries: %w", err)
			}
			sums[cur] = added
		} else {
			sums[cur] = e.Amount
		}
	}

	if !sameCurrencySet(debits, credits) {
		return domain.ErrCurrencyMismatch(fmt.Sprintf(
			"currency sets differ between debits %s and credits %s",
			currencySet(debits), currencySet(credits)))
	}

	for cur, totalDebits := range debits {
		totalCredits := credits[cur]
		if !totalDebits.Equal(totalCredits) {
			return domain.ErrUnbalanced(fmt.Sprintf(
				"unbalanced entries for currency %s: debits=%s, credits=%s",
				cur, totalDebits, totalCredits))
		}
	}
	return nil
}

func sameCurrencySet(a, b map[string]money.Money) bool {
	if len(a) != len(b) {
		return false
	}
	for cur := range a {
		if _, ok := b[cur]; !ok {
			return false
		}
	}
	return true
}

func currencySet(m map[string]money.Money) string {
	codes := make([]string, 0, len(m))
	for cur := range m {
		codes = append(codes, cur)
	}
	sort.Strings(codes)
	return "[" + strings.Join(codes, " ") + "]"
}
