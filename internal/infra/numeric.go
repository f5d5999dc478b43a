package infra

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// CentsFromNumeric converts a NUMERIC(15,0) minor-unit amount into int64 cents.
// NULL, fractional and out-of-range values are errors.
func CentsFromNumeric(n pgtype.Numeric) (int64, error) {
	if !n.Valid {
		return 0, fmt.Errorf("numeric value is NULL")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return 0, fmt.Errorf("numeric value is not finite")
	}

	d := decimal.NewFromBigInt(n.Int, n.Exp)
	if !d.IsInteger() {
		return 0, fmt.Errorf("numeric value %s has a fractional part", d.String())
	}
	bi := d.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("numeric value %s overflows int64", bi.String())
	}
	return bi.Int64(), nil
}

// NumericFromCents converts int64 cents for writing to a NUMERIC(15,0) column.
func NumericFromCents(cents int64) pgtype.Numeric {
	d := decimal.NewFromInt(cents)
	return pgtype.Numeric{
		Int:              d.BigInt(),
		Exp:              0,
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
}
