// Package workbook turns spreadsheet sources into a plain grid of trimmed
// strings that the budget and expense parsers consume. Both xlsx bytes and
// Google Sheets value ranges end up in the same Grid shape.
package workbook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tealeg/xlsx"
)

var (
	ErrNoSheets      = errors.New("workbook has no sheets")
	ErrSheetNotFound = errors.New("sheet not found")
)

// Row is one spreadsheet row; Number is the 1-based row in the source sheet.
type Row struct {
	Number int
	Cells  []string
}

// Cell returns the trimmed cell at index i, or "" when out of range.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// Blank reports whether every cell is empty.
func (r Row) Blank() bool {
	for _, c := range r.Cells {
		if c != "" {
			return false
		}
	}
	return true
}

type Grid struct {
	Sheet    string
	Date1904 bool
	Rows     []Row
}

// Width is the widest row length.
func (g Grid) Width() int {
	w := 0
	for _, r := range g.Rows {
		if len(r.Cells) > w {
			w = len(r.Cells)
		}
	}
	return w
}

// Compact drops fully-empty rows and columns. Row numbers are preserved.
func (g Grid) Compact() Grid {
	out := Grid{Sheet: g.Sheet, Date1904: g.Date1904}
	width := g.Width()
	used := make([]bool, width)
	for _, r := range g.Rows {
		if r.Blank() {
			continue
		}
		for i, c := range r.Cells {
			if c != "" {
				used[i] = true
			}
		}
		out.Rows = append(out.Rows, r)
	}
	keep := make([]int, 0, width)
	for i, u := range used {
		if u {
			keep = append(keep, i)
		}
	}
	for i, r := range out.Rows {
		cells := make([]string, len(keep))
		for j, col := range keep {
			cells[j] = r.Cell(col)
		}
		out.Rows[i] = Row{Number: r.Number, Cells: cells}
	}
	return out
}

// Open reads the named sheet (first sheet when name is empty) from xlsx bytes
// and returns it compacted.
func Open(data []byte, sheet string) (Grid, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return Grid{}, fmt.Errorf("open workbook: %w", err)
	}
	if len(f.Sheets) == 0 {
		return Grid{}, ErrNoSheets
	}
	sh := f.Sheets[0]
	if sheet != "" {
		sh = nil
		for _, s := range f.Sheets {
			if strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(sheet)) {
				sh = s
				break
			}
		}
		if sh == nil {
			return Grid{}, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
		}
	}

	g := Grid{Sheet: sh.Name, Date1904: f.Date1904}
	for i, row := range sh.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			if c != nil {
				cells[j] = strings.TrimSpace(c.Value)
			}
		}
		g.Rows = append(g.Rows, Row{Number: i + 1, Cells: cells})
	}
	return g.Compact(), nil
}

// FromValues builds a compacted grid from a Sheets API value range whose first
// row is sheet row firstRow.
func FromValues(sheet string, firstRow int, values [][]interface{}) Grid {
	g := Grid{Sheet: sheet}
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = strings.TrimSpace(fmt.Sprint(v))
			}
		}
		g.Rows = append(g.Rows, Row{Number: firstRow + i, Cells: cells})
	}
	return g.Compact()
}
