package domain

import "github.com/shopspring/decimal"

var half = decimal.NewFromFloat(0.5)

// RoundHalfUp rounds to the nearest integer, with halves going towards
// positive infinity (2.5 → 3, -2.5 → -2).
func RoundHalfUp(v decimal.Decimal) decimal.Decimal {
	return v.Add(half).Floor()
}

// ConvertToBase converts a local-currency amount into the base currency using
// rate and rounds the result to a whole unit.
func ConvertToBase(amount, rate float64) float64 {
	converted := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate))
	return RoundHalfUp(converted).InexactFloat64()
}

// PlannedBase returns the unrounded base-currency value of a line's planned amount.
func (b BudgetLine) PlannedBase() decimal.Decimal {
	return decimal.NewFromFloat(b.PlannedAmount).Mul(decimal.NewFromFloat(b.CurrencyRate))
}

// WithActual returns a copy of the line carrying a new actual amount and the
// matching CADEquivalent. The stored CurrencyRate is always used.
func (b BudgetLine) WithActual(actual float64) BudgetLine {
	b.ActualAmount = actual
	b.CADEquivalent = ConvertToBase(actual, b.CurrencyRate)
	return b
}
