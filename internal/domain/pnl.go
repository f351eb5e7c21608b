package domain

import "github.com/shopspring/decimal"

// EstimatePnL computes realized profit or loss from the trade legs. The
// result is null when entry, exit or size is missing; missing fees count as
// zero.
func EstimatePnL(dir Direction, entry, exit, size, fees decimal.NullDecimal) decimal.NullDecimal {
	if !entry.Valid || !exit.Valid || !size.Valid {
		return decimal.NullDecimal{}
	}

	var raw decimal.Decimal
	if dir == DirectionShort {
		raw = entry.Decimal.Sub(exit.Decimal).Mul(size.Decimal)
	} else {
		raw = exit.Decimal.Sub(entry.Decimal).Mul(size.Decimal)
	}

	if fees.Valid {
		raw = raw.Sub(fees.Decimal)
	}

	return decimal.NullDecimal{Decimal: raw, Valid: true}
}
