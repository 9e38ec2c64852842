package budget

import (
	"fmt"

	"budgetrecon/internal/core"
	"budgetrecon/internal/workbook"

	"github.com/shopspring/decimal"
)

// A column needs this many numeric rows to qualify as the total column.
const minNumericRows = 10

// legacy parses the unlabeled template: "X) Name" rows open a category, the
// first column holds sub-category descriptions and the total column is the
// right-most column with enough numeric rows.
type legacy struct{}

func (s *legacy) format() Format { return FormatLegacy }

func (s *legacy) parse(g workbook.Grid) (*Ledger, error) {
	totalCol, ok := totalColumn(g)
	if !ok {
		return nil, &core.ParseError{Reason: "no numeric total column found"}
	}
	// Description, twelve months, total.
	hasMonths := totalCol >= 13

	ledger := &Ledger{Format: FormatLegacy}
	var label, category string

	for _, r := range g.Rows {
		desc := r.Cell(0)
		if core.IsCategoryHeader(desc) {
			label, category = core.SplitCategoryLabel(desc)
			continue
		}
		if category == "" || desc == "" || isTotalLabel(desc) {
			continue
		}

		line := core.BudgetLine{
			Row:           r.Number,
			CategoryLabel: label,
			Category:      category,
			SubCategory:   desc,
			Total:         decimal.Zero,
		}
		numeric := false
		if hasMonths {
			for m := 0; m < 12; m++ {
				if v, ok := core.ParseAmount(r.Cell(m + 1)); ok {
					line.Periods[m] = v
					numeric = true
				}
			}
		}
		raw := r.Cell(totalCol)
		if v, ok := core.ParseAmount(raw); ok {
			line.Total = v
			numeric = true
		} else if raw != "" {
			ledger.Diagnostics = append(ledger.Diagnostics, core.Diagnostic{
				Row: r.Number, Column: "Total",
				Message: fmt.Sprintf("unparseable total %q, using 0", raw),
			})
		}
		if !numeric && raw == "" {
			continue
		}
		ledger.Lines = append(ledger.Lines, line)
	}
	if len(ledger.Lines) == 0 {
		return nil, &core.ParseError{Reason: "no budget lines under a category header"}
	}
	return ledger, nil
}

// totalColumn picks the right-most column with at least minNumericRows
// numeric cells. Short sheets fall back to the right-most column with the
// most numeric cells.
func totalColumn(g workbook.Grid) (int, bool) {
	width := g.Width()
	counts := make([]int, width)
	for _, r := range g.Rows {
		for c := 1; c < width; c++ {
			if _, ok := core.ParseAmount(r.Cell(c)); ok {
				counts[c]++
			}
		}
	}
	for c := width - 1; c >= 1; c-- {
		if counts[c] >= minNumericRows {
			return c, true
		}
	}
	best, bestCount := -1, 0
	for c := width - 1; c >= 1; c-- {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best, best > 0
}
