package main

import (
	"fmt"
	"io"

	"budgetrecon/internal/core"

	"github.com/fatih/color"
)

var styles = map[string]*color.Color{
	core.StyleRed:     color.New(color.FgRed),
	core.StyleOrange:  color.New(color.FgYellow),
	core.StyleGreen:   color.New(color.FgGreen),
	core.StyleNeutral: color.New(color.FgWhite),
}

const rowFormat = "%-28s %-28s %14s %14s %14s  %s\n"

// renderRows prints one line per row, coloured by its status style. Total
// rows are bold.
func renderRows(w io.Writer, title string, rows []core.ReconciliationRow, total core.ReconciliationRow) {
	color.New(color.BgBlue, color.FgWhite).Fprintf(w, " %s ", title)
	fmt.Fprintln(w)
	fmt.Fprintf(w, rowFormat, "Category", "Subcategory", "Budgeted", "Spent", "Variance", "Status")
	for _, r := range rows {
		printRow(w, r)
	}
	t := total.Display()
	color.New(color.Bold).Fprintf(w, rowFormat, "TOTAL", "", t.Budgeted, t.Spent, t.Variance, t.Status)
}

func printRow(w io.Writer, r core.ReconciliationRow) {
	d := r.Display()
	c, ok := styles[d.Style]
	if !ok {
		c = styles[core.StyleNeutral]
	}
	if r.IsTotal {
		c = color.New(color.Bold)
	}
	sub := d.SubCategory
	if r.OutOfBudget && d.SourceCategory != "" && d.SourceCategory != d.Category {
		sub = fmt.Sprintf("%s (%s)", sub, d.SourceCategory)
	}
	c.Fprintf(w, rowFormat, d.Category, sub, d.Budgeted, d.Spent, d.Variance, d.Status)
}

func renderWarnings(w io.Writer, warnings []error) {
	if len(warnings) == 0 {
		return
	}
	warn := color.New(color.FgYellow)
	fmt.Fprintln(w)
	for _, err := range warnings {
		warn.Fprintf(w, "warning: %v\n", err)
	}
}

func renderDiagnostics(w io.Writer, source string, diags []core.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s row %d %s: %s\n", source, d.Row, d.Column, d.Message)
	}
}
