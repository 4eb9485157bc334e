package repository

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samuelbaldasso/banking-core/pkg/money"
	"github.com/shopspring/decimal"
)

// decimalToNumeric converts a decimal amount to pgtype.Numeric for writing
// to a PostgreSQL numeric column without precision loss.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:              d.Coefficient(),
		Exp:              d.Exponent(),
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
}

// numericToMoney converts a pgtype.Numeric read from the database into a
// Money in the given currency.
func numericToMoney(n pgtype.Numeric, currency string) (money.Money, error) {
	if !n.Valid {
		return money.Money{}, fmt.Errorf("numeric value is NULL")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return money.Money{}, fmt.Errorf("numeric value is not finite")
	}
	return money.New(decimal.NewFromBigInt(n.Int, n.Exp), currency)
}
