// Package classification builds the per-month status grid of a budget file
// from its lines and saved entries, and summarizes the saved labels.
package classification

import (
	"errors"
	"fmt"

	"budgetrecon/internal/core"

	"github.com/shopspring/decimal"
)

// ErrInvalidUpdate marks an update addressing no cell of the grid.
var ErrInvalidUpdate = errors.New("invalid classification update")

// Cell is one (line, month) status.
type Cell struct {
	Period string           `json:"period"`
	Amount decimal.Decimal  `json:"amount"`
	Status core.StatusLabel `json:"status"`
}

// Row is one budget line with its twelve monthly cells.
type Row struct {
	Category    string   `json:"category"`
	SubCategory string   `json:"sub_category"`
	Cells       [12]Cell `json:"cells"`
}

// Grid is the editable classification state of one budget file, in budget
// order.
type Grid struct {
	Rows []Row `json:"rows"`
}

// Update assigns a status to one cell.
type Update struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Period      string `json:"period"`
	Status      string `json:"status"`
}

type cellKey struct {
	line  core.LineKey
	month int
}

// BuildGrid lays out every budget line with its monthly amounts. A cell takes
// its saved status when one exists and defaultStatus otherwise. Saved entries
// for lines no longer in the budget are ignored.
func BuildGrid(lines []core.BudgetLine, saved []core.ClassificationEntry, defaultStatus core.StatusLabel) Grid {
	statuses := make(map[cellKey]core.StatusLabel, len(saved))
	for _, e := range saved {
		m := core.PeriodIndex(e.Period)
		if m < 0 {
			continue
		}
		k := cellKey{core.NewLineKey(e.Category, e.SubCategory), m}
		if _, dup := statuses[k]; !dup {
			statuses[k] = e.Status
		}
	}

	g := Grid{Rows: make([]Row, 0, len(lines))}
	for _, l := range lines {
		r := Row{Category: l.Category, SubCategory: l.SubCategory}
		for m := range core.Months {
			status, ok := statuses[cellKey{l.Key(), m}]
			if !ok {
				status = defaultStatus
			}
			r.Cells[m] = Cell{Period: core.Months[m], Amount: l.Periods[m], Status: status}
		}
		g.Rows = append(g.Rows, r)
	}
	return g
}

// Apply sets the status of the addressed cells. Every update is checked
// before any is applied; an unknown line, period or label rejects the batch.
func (g *Grid) Apply(updates []Update) error {
	type target struct {
		rows   []int
		month  int
		status core.StatusLabel
	}
	index := make(map[core.LineKey][]int, len(g.Rows))
	for i, r := range g.Rows {
		k := core.NewLineKey(r.Category, r.SubCategory)
		index[k] = append(index[k], i)
	}
	targets := make([]target, 0, len(updates))
	for _, u := range updates {
		rows, ok := index[core.NewLineKey(u.Category, u.SubCategory)]
		if !ok {
			return fmt.Errorf("%w: no budget line %s / %s", ErrInvalidUpdate, u.Category, u.SubCategory)
		}
		m := core.PeriodIndex(u.Period)
		if m < 0 {
			return fmt.Errorf("%w: unknown period %q", ErrInvalidUpdate, u.Period)
		}
		status, err := core.ParseStatusLabel(u.Status)
		if err != nil {
			return err
		}
		targets = append(targets, target{rows: rows, month: m, status: status})
	}
	for _, t := range targets {
		for _, i := range t.rows {
			g.Rows[i].Cells[t.month].Status = t.status
		}
	}
	return nil
}

// Entries flattens the grid into one entry per cell, ready for a store Save.
func (g Grid) Entries(fileKey string) []core.ClassificationEntry {
	out := make([]core.ClassificationEntry, 0, len(g.Rows)*len(core.Months))
	for _, r := range g.Rows {
		for _, c := range r.Cells {
			out = append(out, core.ClassificationEntry{
				FileKey:     fileKey,
				Category:    r.Category,
				SubCategory: r.SubCategory,
				Period:      c.Period,
				Status:      c.Status,
				Amount:      c.Amount,
			})
		}
	}
	return out
}

// Validate rejects cells carrying a label outside the known set.
func (g Grid) Validate() error {
	for _, r := range g.Rows {
		for _, c := range r.Cells {
			if _, err := core.ParseStatusLabel(string(c.Status)); err != nil {
				return fmt.Errorf("%s / %s %s: %w", r.Category, r.SubCategory, c.Period, err)
			}
		}
	}
	return nil
}
