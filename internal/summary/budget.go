package summary

import (
	"github.com/shopspring/decimal"

	"fieldmonitor/pkg/domain"
)

// HighVarianceThreshold is the variance percentage above which a line is flagged.
const HighVarianceThreshold = 20.0

// BudgetTotals summarises the budget in base currency.
type BudgetTotals struct {
	PlannedBase float64 `json:"plannedBase"`
	Spent       float64 `json:"spent"`
	Remaining   float64 `json:"remaining"`
	Utilization int     `json:"utilization"`
}

// Totals sums planned × rate and the CAD equivalents of every line.
func Totals(lines []domain.BudgetLine) BudgetTotals {
	planned := decimal.Zero
	spent := decimal.Zero
	for _, l := range lines {
		planned = planned.Add(l.PlannedBase())
		spent = spent.Add(decimal.NewFromFloat(l.CADEquivalent))
	}
	return BudgetTotals{
		PlannedBase: planned.InexactFloat64(),
		Spent:       spent.InexactFloat64(),
		Remaining:   planned.Sub(spent).InexactFloat64(),
		Utilization: percent(spent, planned),
	}
}

// Utilization is the rounded share of the planned base budget already spent.
func Utilization(lines []domain.BudgetLine) int {
	return Totals(lines).Utilization
}

// Variance returns 100 × (actual − planned) / planned, or 0 when nothing was planned.
func Variance(line domain.BudgetLine) float64 {
	if line.PlannedAmount <= 0 {
		return 0
	}
	planned := decimal.NewFromFloat(line.PlannedAmount)
	diff := decimal.NewFromFloat(line.ActualAmount).Sub(planned)
	return diff.Mul(hundred).Div(planned).InexactFloat64()
}

// LineVariance is the per-line variance view.
type LineVariance struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Variance float64 `json:"variance"`
	High     bool    `json:"high"`
}

// Variances computes the variance of every line in order.
func Variances(lines []domain.BudgetLine) []LineVariance {
	out := make([]LineVariance, 0, len(lines))
	for _, l := range lines {
		v := Variance(l)
		out = append(out, LineVariance{ID: l.ID, Category: l.Category, Variance: v, High: v > HighVarianceThreshold})
	}
	return out
}

// ChartRow compares planned and actual spend for one category in base currency.
type ChartRow struct {
	Category string  `json:"category"`
	Planned  float64 `json:"planned"`
	Actual   float64 `json:"actual"`
}

// ChartRows returns round(planned × rate) alongside the CAD equivalent per line.
func ChartRows(lines []domain.BudgetLine) []ChartRow {
	out := make([]ChartRow, 0, len(lines))
	for _, l := range lines {
		out = append(out, ChartRow{
			Category: l.Category,
			Planned:  domain.RoundHalfUp(l.PlannedBase()).InexactFloat64(),
			Actual:   l.CADEquivalent,
		})
	}
	return out
}
