// Package budget parses budget workbooks into a flat ledger of BudgetLine.
//
// Two layouts are supported. The canonical layout has a header row with
// Category, Subcategory, twelve month columns and an optional Notes column.
// The legacy layout is an unlabeled grid where "A) Name" rows start a
// category and the total column is found heuristically. A detection step
// picks one strategy before any row is parsed.
package budget

import (
	"errors"
	"strings"

	"budgetrecon/internal/core"
	"budgetrecon/internal/workbook"

	"github.com/shopspring/decimal"
)

const (
	FormatCanonical Format = "canonical"
	FormatLegacy    Format = "legacy"
)

// Header rows are looked for within the first rows only.
const maxHeaderScan = 15

// Format names the layout a budget sheet was parsed with.
type Format string

// Ledger is the result of one parse. It is never mutated after Parse returns.
type Ledger struct {
	Source      string
	Format      Format
	Lines       []core.BudgetLine
	Diagnostics []core.Diagnostic
}

// Categories returns category names in first-seen order.
func (l *Ledger) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range l.Lines {
		k := core.NormalizeName(line.Category)
		if !seen[k] {
			seen[k] = true
			out = append(out, line.Category)
		}
	}
	return out
}

// Total sums the Total of every line.
func (l *Ledger) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range l.Lines {
		sum = sum.Add(line.Total)
	}
	return sum
}

// Options selects the sheet read by ParseWorkbook.
type Options struct {
	// Sheet selects a worksheet by name; empty means the first sheet.
	Sheet string
	// Source names the file in errors and logs.
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

// Parse detects the layout of g and parses it with the matching strategy.
func Parse(g workbook.Grid, source string) (*Ledger, error) {
	g = g.Compact()
	s, err := detect(g)
	if err != nil {
		var pe *core.ParseError
		if errors.As(err, &pe) {
			pe.Source = source
		}
		return nil, err
	}
	ledger, err := s.parse(g)
	if err != nil {
		var pe *core.ParseError
		if errors.As(err, &pe) {
			pe.Source = source
		}
		return nil, err
	}
	ledger.Source = source
	return ledger, nil
}

// Detect reports which layout g uses without parsing it.
func Detect(g workbook.Grid) (Format, error) {
	s, err := detect(g.Compact())
	if err != nil {
		return "", err
	}
	return s.format(), nil
}

type strategy interface {
	format() Format
	parse(g workbook.Grid) (*Ledger, error)
}

func detect(g workbook.Grid) (strategy, error) {
	var best *canonicalColumns
	for i, r := range g.Rows {
		if i >= maxHeaderScan {
			break
		}
		cols := resolveCanonical(r)
		if len(cols.missing()) == 0 {
			return &canonical{header: i, cols: cols}, nil
		}
		if best == nil || cols.found() > best.found() {
			c := cols
			best = &c
		}
	}
	// A header naming Category and Subcategory is a canonical sheet with
	// missing columns, even when its categories carry "A)" labels.
	if best != nil && best.category >= 0 && best.sub >= 0 {
		return nil, &core.ParseError{Missing: best.missing()}
	}
	for _, r := range g.Rows {
		if core.IsCategoryHeader(r.Cell(0)) {
			return &legacy{}, nil
		}
	}
	missing := canonicalNames()
	if best != nil && best.found() > 0 {
		missing = best.missing()
	}
	return nil, &core.ParseError{Missing: missing}
}

// headerKey folds a header cell for matching: "Sub-Category" -> "subcategory".
func headerKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '.', '\u00a0':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

func isTotalLabel(s string) bool {
	k := headerKey(s)
	return k == "total" || k == "grandtotal" || k == "totals"
}
