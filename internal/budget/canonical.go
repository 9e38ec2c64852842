package budget

import (
	"fmt"

	"budgetrecon/internal/core"
	"budgetrecon/internal/workbook"

	"github.com/shopspring/decimal"
)

type canonicalColumns struct {
	category int
	sub      int
	months   [12]int
	notes    int
}

func canonicalNames() []string {
	names := []string{"Category", "Subcategory"}
	return append(names, core.Months[:]...)
}

func resolveCanonical(r workbook.Row) canonicalColumns {
	cols := canonicalColumns{category: -1, sub: -1, notes: -1}
	for i := range cols.months {
		cols.months[i] = -1
	}
	for i, cell := range r.Cells {
		switch k := headerKey(cell); k {
		case "category", "categories":
			if cols.category < 0 {
				cols.category = i
			}
		case "subcategory", "subcategories":
			if cols.sub < 0 {
				cols.sub = i
			}
		case "notes", "note", "comments":
			if cols.notes < 0 {
				cols.notes = i
			}
		default:
			if m := core.PeriodIndex(k); m >= 0 && cols.months[m] < 0 {
				cols.months[m] = i
			}
		}
	}
	return cols
}

func (c canonicalColumns) missing() []string {
	var out []string
	if c.category < 0 {
		out = append(out, "Category")
	}
	if c.sub < 0 {
		out = append(out, "Subcategory")
	}
	for i, col := range c.months {
		if col < 0 {
			out = append(out, core.Months[i])
		}
	}
	return out
}

func (c canonicalColumns) found() int {
	return 14 - len(c.missing())
}

// canonical parses a sheet with an explicit header row.
type canonical struct {
	header int
	cols   canonicalColumns
}

func (s *canonical) format() Format { return FormatCanonical }

func (s *canonical) parse(g workbook.Grid) (*Ledger, error) {
	ledger := &Ledger{Format: FormatCanonical}
	var label, category string

	for _, r := range g.Rows[s.header+1:] {
		catCell := r.Cell(s.cols.category)
		subCell := r.Cell(s.cols.sub)
		if isTotalLabel(catCell) || isTotalLabel(subCell) {
			continue
		}
		if catCell != "" {
			label, category = core.SplitCategoryLabel(catCell)
		}
		if subCell == "" {
			continue
		}
		if category == "" {
			ledger.Diagnostics = append(ledger.Diagnostics, core.Diagnostic{
				Row: r.Number, Column: "Category",
				Message: fmt.Sprintf("sub-category %q has no category, row skipped", subCell),
			})
			continue
		}
		_, sub := core.SplitCategoryLabel(subCell)

		line := core.BudgetLine{
			Row:           r.Number,
			CategoryLabel: label,
			Category:      category,
			SubCategory:   sub,
			Total:         decimal.Zero,
			Notes:         r.Cell(s.cols.notes),
		}
		for m, col := range s.cols.months {
			raw := r.Cell(col)
			v, ok := core.ParseAmount(raw)
			if !ok && raw != "" {
				ledger.Diagnostics = append(ledger.Diagnostics, core.Diagnostic{
					Row: r.Number, Column: core.Months[m],
					Message: fmt.Sprintf("unparseable amount %q, using 0", raw),
				})
			}
			line.Periods[m] = v
			line.Total = line.Total.Add(v)
		}
		ledger.Lines = append(ledger.Lines, line)
	}
	return ledger, nil
}
