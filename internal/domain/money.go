package domain

import "github.com/shopspring/decimal"

// RoundMoney rounds a monetary amount to 2 decimal places, half away from
// zero. Intermediate arithmetic stays unrounded; rounding is applied only at
// the final step of each computation so per-line amounts and totals agree.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
