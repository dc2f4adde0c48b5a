package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places kept for every amount.
const MoneyScale = 2

// NormalizeAmount rounds an amount to MoneyScale decimal places.
func NormalizeAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// IsPositiveAmount reports whether d is strictly positive once rounded.
func IsPositiveAmount(d decimal.Decimal) bool {
	return NormalizeAmount(d).IsPositive()
}
