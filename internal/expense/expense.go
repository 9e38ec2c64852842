// Package expense parses expense workbooks into a flat ledger of ExpenseLine.
package expense

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"budgetrecon/internal/core"
	"budgetrecon/internal/workbook"
)

// CompoundDelimiter separates category and sub-category in a single cell:
// "Travel *** Flights".
const CompoundDelimiter = "***"

const maxHeaderScan = 15

const (
	colDate = iota
	colCategory
	colSubCategory
	colVendor
	colAmount
	colCurrency
	colClassification
	colNotes
	numColumns
)

var columnNames = [numColumns]string{
	"Date", "Category", "Subcategory", "Vendor", "Amount", "Currency", "Classification", "Notes",
}

// Accepted header spellings after folding, per column.
var columnAliases = [numColumns][]string{
	{"date", "expensedate"},
	{"category", "budgetcategory"},
	{"subcategory"},
	{"vendor", "supplier", "payee"},
	{"amount", "amountnative"},
	{"currency", "ccy"},
	{"classification", "type"},
	{"notes", "note", "comments"},
}

// Ledger is the result of one parse, in sheet order. It is never mutated
// after Parse returns.
type Ledger struct {
	Source      string
	Lines       []core.ExpenseLine
	Diagnostics []core.Diagnostic
}

// Vendors returns the distinct vendor names, sorted.
func (l *Ledger) Vendors() []string {
	return distinct(l.Lines, func(e core.ExpenseLine) string { return e.Vendor })
}

// Categories returns the distinct resolved categories, sorted.
func (l *Ledger) Categories() []string {
	return distinct(l.Lines, func(e core.ExpenseLine) string { return e.Category })
}

func distinct(lines []core.ExpenseLine, field func(core.ExpenseLine) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range lines {
		v := field(line)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Options selects the sheet read by ParseWorkbook and names it in errors.
type Options struct {
	Sheet  string
	Source string
}

// ParseWorkbook reads xlsx bytes and parses the selected sheet.
func ParseWorkbook(data []byte, opts Options) (*Ledger, error) {
	g, err := workbook.Open(data, opts.Sheet)
	if err != nil {
		if errors.Is(err, workbook.ErrSheetNotFound) {
			return nil, &core.ParseError{Source: opts.Source, Reason: err.Error()}
		}
		return nil, core.CorruptFile(opts.Source, err)
	}
	return Parse(g, opts.Source)
}

// Parse maps the header row of g and converts every data row. Row-level
// problems never fail the parse; they are recorded as diagnostics.
func Parse(g workbook.Grid, source string) (*Ledger, error) {
	g = g.Compact()
	header, cols, err := resolveHeader(g)
	if err != nil {
		err.Source = source
		return nil, err
	}

	ledger := &Ledger{Source: source}
	var lastCategory, lastSub string

	for _, r := range g.Rows[header+1:] {
		cell := func(c int) string { return r.Cell(cols[c]) }

		if cell(colSubCategory) == "" && cell(colVendor) == "" && cell(colAmount) == "" {
			continue
		}

		category, sub := splitCompound(cell(colCategory), cell(colSubCategory))
		if category == "" {
			category = lastCategory
		}
		if sub == "" {
			sub = lastSub
		}
		lastCategory, lastSub = category, sub

		line := core.ExpenseLine{
			Row:            r.Number,
			SubCategory:    sub,
			Vendor:         cell(colVendor),
			Currency:       strings.ToUpper(cell(colCurrency)),
			Classification: core.ParseClassification(cell(colClassification)),
			Notes:          cell(colNotes),
		}
		line.CategoryLabel, line.Category = core.SplitCategoryLabel(category)
		if line.Category == "" || strings.EqualFold(line.Category, "N/A") {
			line.CategoryLabel, line.Category = "", core.OutOfBudget
		}

		if raw := cell(colDate); raw != "" {
			if t, ok := workbook.ParseDate(raw, g.Date1904); ok {
				line.Date = core.Date{Time: t}
			} else {
				ledger.Diagnostics = append(ledger.Diagnostics, core.Diagnostic{
					Row: r.Number, Column: columnNames[colDate],
					Message: fmt.Sprintf("unparseable date %q, left empty", raw),
				})
			}
		}

		raw := cell(colAmount)
		amount, ok := core.ParseAmount(raw)
		if !ok && raw != "" {
			ledger.Diagnostics = append(ledger.Diagnostics, core.Diagnostic{
				Row: r.Number, Column: columnNames[colAmount],
				Message: fmt.Sprintf("unparseable amount %q, using 0", raw),
			})
		}
		line.AmountNative = amount

		ledger.Lines = append(ledger.Lines, line)
	}
	return ledger, nil
}

// splitCompound resolves the category and sub-category of a row. A compound
// sub-category cell overrides the category column; a compound category cell
// contributes only its left part.
func splitCompound(category, sub string) (string, string) {
	if left, _, ok := strings.Cut(category, CompoundDelimiter); ok {
		category = strings.TrimSpace(left)
	}
	if left, right, ok := strings.Cut(sub, CompoundDelimiter); ok {
		return strings.TrimSpace(left), strings.TrimSpace(right)
	}
	return category, sub
}

func resolveHeader(g workbook.Grid) (int, [numColumns]int, *core.ParseError) {
	bestRow, bestFound := -1, -1
	var best [numColumns]int
	for i, r := range g.Rows {
		if i >= maxHeaderScan {
			break
		}
		cols, found := indexColumns(r)
		if found == numColumns {
			return i, cols, nil
		}
		if found > bestFound {
			bestRow, bestFound, best = i, found, cols
		}
	}
	var missing []string
	for c, idx := range best {
		if bestRow < 0 || idx < 0 {
			missing = append(missing, columnNames[c])
		}
	}
	return 0, best, &core.ParseError{Missing: missing}
}

func indexColumns(r workbook.Row) ([numColumns]int, int) {
	var cols [numColumns]int
	for c := range cols {
		cols[c] = -1
	}
	found := 0
	for i, raw := range r.Cells {
		k := headerKey(raw)
		for c, aliases := range columnAliases {
			if cols[c] >= 0 {
				continue
			}
			for _, a := range aliases {
				if k == a {
					cols[c] = i
					found++
					break
				}
			}
		}
	}
	return cols, found
}

func headerKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '.', '(', ')', '\u00a0':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}
