package classification

import (
	"budgetrecon/internal/core"

	"github.com/shopspring/decimal"
)

// StatusTotal is the summed budget amount carrying one label.
type StatusTotal struct {
	Status core.StatusLabel `json:"status"`
	Total  decimal.Decimal  `json:"total"`
}

// Summary is the dashboard header of a classified budget.
type Summary struct {
	Totals      []StatusTotal   `json:"totals"`
	BudgetTotal decimal.Decimal `json:"budget_total"`
	SpentUSD    decimal.Decimal `json:"spent_usd"`
	Balance     decimal.Decimal `json:"balance"`
}

// Summarize totals entries per label in StatusLabels order, with a zero for
// unused labels. Entries without a label are left out of the totals. Balance
// is the budget total less spentUSD.
func Summarize(entries []core.ClassificationEntry, lines []core.BudgetLine, spentUSD decimal.Decimal) Summary {
	byStatus := make(map[core.StatusLabel]decimal.Decimal)
	for _, e := range entries {
		if e.Status == core.StatusUnset {
			continue
		}
		if prev, ok := byStatus[e.Status]; ok {
			byStatus[e.Status] = prev.Add(e.Amount)
		} else {
			byStatus[e.Status] = e.Amount
		}
	}
	labels := core.StatusLabels()
	s := Summary{Totals: make([]StatusTotal, 0, len(labels)), BudgetTotal: decimal.Zero, SpentUSD: spentUSD}
	for _, l := range labels {
		total, ok := byStatus[l]
		if !ok {
			total = decimal.Zero
		}
		s.Totals = append(s.Totals, StatusTotal{Status: l, Total: total})
	}
	for _, l := range lines {
		s.BudgetTotal = s.BudgetTotal.Add(l.Total)
	}
	s.Balance = s.BudgetTotal.Sub(spentUSD)
	return s
}

// SpentUSD sums the converted amounts of lines; unconverted lines count as 0.
func SpentUSD(lines []core.ExpenseLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.AmountUSD.Valid {
			total = total.Add(l.AmountUSD.Decimal)
		}
	}
	return total
}
