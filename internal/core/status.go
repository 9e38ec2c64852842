package core

import "github.com/shopspring/decimal"

const (
	StatusOverspent     VarianceStatus = "Overspent"
	StatusWarning       VarianceStatus = "Warning — ≥70% Spent"
	StatusWithinBudget  VarianceStatus = "Within Budget"
	StatusNoExpenditure VarianceStatus = "No Expenditure / OOB"
)

const (
	StyleRed     = "red"
	StyleOrange  = "orange"
	StyleGreen   = "green"
	StyleNeutral = "neutral"
)

// VarianceStatus is the computed budget health of a reconciliation row.
type VarianceStatus string

var warningRatio = decimal.RequireFromString("0.70")

// ClassifyVariance applies the status rules in priority order. The inputs are
// the full-precision amounts; rounding happens only in Display.
func ClassifyVariance(budgeted, spent decimal.Decimal) VarianceStatus {
	variance := budgeted.Sub(spent)
	switch {
	case variance.IsNegative():
		return StatusOverspent
	case variance.IsPositive() && spent.GreaterThanOrEqual(budgeted.Mul(warningRatio)):
		return StatusWarning
	case variance.IsPositive():
		return StatusWithinBudget
	default:
		return StatusNoExpenditure
	}
}

// Style returns the colour hint used by report renderers.
func (s VarianceStatus) Style() string {
	switch s {
	case StatusOverspent:
		return StyleRed
	case StatusWarning:
		return StyleOrange
	case StatusWithinBudget:
		return StyleGreen
	default:
		return StyleNeutral
	}
}

// ReconciliationRow is one line of a report view. Amounts are kept at full
// precision.
type ReconciliationRow struct {
	Category       string
	SubCategory    string // empty on category total rows
	SourceCategory string // original category of an out-of-budget row
	Budgeted       decimal.Decimal
	Spent          decimal.Decimal
	Variance       decimal.Decimal
	Status         VarianceStatus
	IsTotal        bool
	OutOfBudget    bool
}

// NewReconciliationRow derives variance and status from the two amounts.
func NewReconciliationRow(category, sub string, budgeted, spent decimal.Decimal) ReconciliationRow {
	return ReconciliationRow{
		Category:    category,
		SubCategory: sub,
		Budgeted:    budgeted,
		Spent:       spent,
		Variance:    budgeted.Sub(spent),
		Status:      ClassifyVariance(budgeted, spent),
	}
}

// RowDisplay is a ReconciliationRow rounded for presentation.
type RowDisplay struct {
	Category       string `json:"category"`
	SubCategory    string `json:"sub_category"`
	SourceCategory string `json:"source_category,omitempty"`
	Budgeted       string `json:"budgeted"`
	Spent          string `json:"spent"`
	Variance       string `json:"variance"`
	Status         string `json:"status"`
	Style          string `json:"style"`
	IsTotal        bool   `json:"is_total"`
	OutOfBudget    bool   `json:"out_of_budget"`
}

// Display rounds every amount to two places.
func (r ReconciliationRow) Display() RowDisplay {
	return RowDisplay{
		Category:       r.Category,
		SubCategory:    r.SubCategory,
		SourceCategory: r.SourceCategory,
		Budgeted:       r.Budgeted.StringFixed(2),
		Spent:          r.Spent.StringFixed(2),
		Variance:       r.Variance.StringFixed(2),
		Status:         string(r.Status),
		Style:          r.Status.Style(),
		IsTotal:        r.IsTotal,
		OutOfBudget:    r.OutOfBudget,
	}
}
