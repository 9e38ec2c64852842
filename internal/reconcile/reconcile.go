// Package reconcile joins a budget ledger with converted expenses and builds
// the subcategory, category and hierarchy report views.
//
// Amounts are aggregated at full precision. Rounding is left to
// core.ReconciliationRow.Display.
package reconcile

import (
	"fmt"
	"sort"

	"budgetrecon/internal/core"

	"github.com/shopspring/decimal"
)

// Result holds the three report views for one classification filter.
type Result struct {
	Filter core.Classification

	// Subcategories has one row per (category, sub-category): budget lines
	// first in budget order, then spend with no budget line in first-seen
	// order, flagged OutOfBudget and keeping its own category.
	Subcategories []core.ReconciliationRow
	// Categories rolls Subcategories up by category.
	Categories []core.ReconciliationRow
	// Hierarchy lists, per category, a total row followed by its detail rows.
	// Unbudgeted spend is regrouped under core.OutOfBudget, which comes last.
	Hierarchy []core.ReconciliationRow
	// Total is the grand total over every row.
	Total core.ReconciliationRow

	// Expenses is the number of expense lines that passed the filter.
	Expenses int
	// Warnings are non-fatal: core.ErrReconciliationEmpty,
	// *core.UnconvertedError and skipped budget lines.
	Warnings []error
}

type bucket struct {
	category string
	sub      string
	amount   decimal.Decimal
}

// orderedSums accumulates amounts per key and remembers first-seen order and
// display names.
type orderedSums struct {
	index map[core.LineKey]int
	items []bucket
}

func newOrderedSums() *orderedSums {
	return &orderedSums{index: make(map[core.LineKey]int)}
}

func (s *orderedSums) add(category, sub string, amount decimal.Decimal) {
	k := core.NewLineKey(category, sub)
	if i, ok := s.index[k]; ok {
		s.items[i].amount = s.items[i].amount.Add(amount)
		return
	}
	s.index[k] = len(s.items)
	s.items = append(s.items, bucket{category: category, sub: sub, amount: amount})
}

func (s *orderedSums) get(k core.LineKey) (decimal.Decimal, bool) {
	i, ok := s.index[k]
	if !ok {
		return decimal.Zero, false
	}
	return s.items[i].amount, true
}

// Reconcile builds the report views. filter must be OPEX or CAPEX. expenses
// are expected to be converted already; a null AmountUSD counts as zero and
// is reported in an UnconvertedError warning.
func Reconcile(budget []core.BudgetLine, expenses []core.ExpenseLine, filter core.Classification) (*Result, error) {
	if !filter.ValidFilter() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidClassification, filter)
	}
	res := &Result{Filter: filter}

	planned := newOrderedSums()
	for _, line := range budget {
		if core.IsOutOfBudget(line.Category) {
			res.Warnings = append(res.Warnings, fmt.Errorf(
				"budget row %d uses the reserved category %q and was skipped", line.Row, core.OutOfBudget))
			continue
		}
		planned.add(line.Category, line.SubCategory, line.Total)
	}

	spent := newOrderedSums()
	unconverted := 0
	codes := make(map[string]bool)
	for _, e := range expenses {
		if e.Classification != filter {
			continue
		}
		res.Expenses++
		amount := decimal.Zero
		if e.AmountUSD.Valid {
			amount = e.AmountUSD.Decimal
		} else {
			unconverted++
			codes[e.Currency] = true
		}
		spent.add(e.Category, e.SubCategory, amount)
	}
	if res.Expenses == 0 {
		res.Warnings = append(res.Warnings, core.ErrReconciliationEmpty)
	}
	if unconverted > 0 {
		res.Warnings = append(res.Warnings, &core.UnconvertedError{Count: unconverted, Codes: sortedKeys(codes)})
	}

	res.Subcategories = subcategoryView(planned, spent)
	res.Categories = rollUp(res.Subcategories)
	res.Hierarchy = hierarchyView(res.Subcategories)
	res.Total = grandTotal(res.Subcategories)
	return res, nil
}

func subcategoryView(planned, spent *orderedSums) []core.ReconciliationRow {
	rows := make([]core.ReconciliationRow, 0, len(planned.items)+len(spent.items))
	for _, b := range planned.items {
		s, _ := spent.get(core.NewLineKey(b.category, b.sub))
		rows = append(rows, core.NewReconciliationRow(b.category, b.sub, b.amount, s))
	}
	for _, b := range spent.items {
		if _, ok := planned.get(core.NewLineKey(b.category, b.sub)); ok {
			continue
		}
		row := core.NewReconciliationRow(b.category, b.sub, decimal.Zero, b.amount)
		row.OutOfBudget = true
		rows = append(rows, row)
	}
	return rows
}

func rollUp(rows []core.ReconciliationRow) []core.ReconciliationRow {
	sums := newOrderedSums()
	budgeted := newOrderedSums()
	for _, r := range rows {
		sums.add(r.Category, "", r.Spent)
		budgeted.add(r.Category, "", r.Budgeted)
	}
	out := make([]core.ReconciliationRow, len(sums.items))
	for i, b := range sums.items {
		out[i] = core.NewReconciliationRow(b.category, "", budgeted.items[i].amount, b.amount)
		out[i].IsTotal = true
		out[i].OutOfBudget = core.IsOutOfBudget(b.category)
	}
	return out
}

type group struct {
	name   string
	detail []core.ReconciliationRow
}

func hierarchyView(rows []core.ReconciliationRow) []core.ReconciliationRow {
	var groups []*group
	index := make(map[string]*group)
	oob := &group{name: core.OutOfBudget}

	for _, r := range rows {
		if r.OutOfBudget {
			d := r
			d.Category = core.OutOfBudget
			if !core.IsOutOfBudget(r.Category) {
				d.SourceCategory = r.Category
			}
			oob.detail = append(oob.detail, d)
			continue
		}
		k := core.NormalizeName(r.Category)
		g, ok := index[k]
		if !ok {
			g = &group{name: r.Category}
			index[k] = g
			groups = append(groups, g)
		}
		g.detail = append(g.detail, r)
	}
	if len(oob.detail) > 0 {
		groups = append(groups, oob)
	}

	out := make([]core.ReconciliationRow, 0, len(rows)+len(groups))
	for _, g := range groups {
		budgeted, spent := decimal.Zero, decimal.Zero
		for _, d := range g.detail {
			budgeted = budgeted.Add(d.Budgeted)
			spent = spent.Add(d.Spent)
		}
		total := core.NewReconciliationRow(g.name, "", budgeted, spent)
		total.IsTotal = true
		total.OutOfBudget = g == oob
		out = append(out, total)
		out = append(out, g.detail...)
	}
	return out
}

func grandTotal(rows []core.ReconciliationRow) core.ReconciliationRow {
	budgeted, spent := decimal.Zero, decimal.Zero
	for _, r := range rows {
		budgeted = budgeted.Add(r.Budgeted)
		spent = spent.Add(r.Spent)
	}
	t := core.NewReconciliationRow("Total", "", budgeted, spent)
	t.IsTotal = true
	return t
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		if k == "" {
			k = "(blank)"
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
