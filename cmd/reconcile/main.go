// Command reconcile prints a budget versus actuals report for two local
// workbooks without running the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetrecon/internal/budget"
	"budgetrecon/internal/cli"
	"budgetrecon/internal/core"
	"budgetrecon/internal/expense"
	"budgetrecon/internal/fx"
	"budgetrecon/internal/reconcile"
	"budgetrecon/internal/report"

	"github.com/fatih/color"
)

type options struct {
	BudgetFile   string
	ExpenseFile  string
	BudgetSheet  string
	ExpenseSheet string
	Filter       string
	Vendors      []string
	Categories   []string
	Rates        string
	Providers    []string
	View         string
	Timeout      time.Duration
	Verbose      bool
}

const (
	viewHierarchy     = "hierarchy"
	viewCategories    = "categories"
	viewSubcategories = "subcategories"
)

func main() {
	var (
		opts                          options
		vendors, categories, provider string
		noColor                       bool
	)
	flag.StringVar(&opts.BudgetFile, "budget", "", "Budget workbook (.xlsx).")
	flag.StringVar(&opts.ExpenseFile, "expenses", "", "Expense workbook (.xlsx).")
	flag.StringVar(&opts.BudgetSheet, "budget-sheet", "", "Budget worksheet; first sheet if empty.")
	flag.StringVar(&opts.ExpenseSheet, "expense-sheet", "", "Expense worksheet; first sheet if empty.")
	flag.StringVar(&opts.Filter, "filter", "", "OPEX or CAPEX; taken from the budget file name tag if empty.")
	flag.StringVar(&vendors, "vendors", "", "Comma separated vendors to include.")
	flag.StringVar(&categories, "categories", "", "Comma separated categories to include.")
	flag.StringVar(&opts.Rates, "rates", "", "Rates as CODE=VALUE,... or a .yaml/.json file; fetched online if empty.")
	flag.StringVar(&provider, "providers", "exchangerate.host,open.er-api.com", "Comma separated rate providers used when -rates is empty.")
	flag.StringVar(&opts.View, "view", viewHierarchy, "hierarchy, categories or subcategories.")
	flag.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Rate fetch timeout.")
	flag.BoolVar(&opts.Verbose, "v", false, "Print row diagnostics.")
	flag.BoolVar(&noColor, "no-color", false, "Disable colour output.")
	flag.Parse()

	cli.LoadEnvFile()
	if noColor {
		color.NoColor = true
	}
	opts.Vendors = splitList(vendors)
	opts.Categories = splitList(categories)
	opts.Providers = splitList(provider)

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "reconcile: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, w io.Writer) error {
	if opts.BudgetFile == "" || opts.ExpenseFile == "" {
		return errors.New("-budget and -expenses are required")
	}
	filter, err := resolveFilter(opts.Filter, opts.BudgetFile)
	if err != nil {
		return err
	}

	plan, err := parseBudget(opts.BudgetFile, opts.BudgetSheet)
	if err != nil {
		return err
	}
	spend, err := parseExpenses(opts.ExpenseFile, opts.ExpenseSheet)
	if err != nil {
		return err
	}

	table, provider, err := loadRates(ctx, opts)
	if err != nil {
		return err
	}
	lines := report.InScope(report.FilterExpenses(spend.Lines, opts.Vendors, opts.Categories), filter)
	converted, unknown := fx.ConvertLedger(lines, table)

	res, err := reconcile.Reconcile(plan.Lines, converted, filter)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%s layout) vs %s, %s, rates from %s\n\n",
		filepath.Base(opts.BudgetFile), plan.Format, filepath.Base(opts.ExpenseFile), filter, provider)
	title := fmt.Sprintf("%s %s", filter, opts.View)
	switch opts.View {
	case viewHierarchy, "":
		renderRows(w, title, res.Hierarchy, res.Total)
	case viewCategories:
		renderRows(w, title, res.Categories, res.Total)
	case viewSubcategories:
		renderRows(w, title, res.Subcategories, res.Total)
	default:
		return fmt.Errorf("unknown view %q", opts.View)
	}

	warnings := res.Warnings
	if unknown != nil {
		warnings = append([]error{unknown}, warnings...)
	}
	renderWarnings(w, warnings)
	if opts.Verbose {
		fmt.Fprintln(w)
		renderDiagnostics(w, filepath.Base(opts.BudgetFile), plan.Diagnostics)
		renderDiagnostics(w, filepath.Base(opts.ExpenseFile), spend.Diagnostics)
	}
	return nil
}

// resolveFilter parses the explicit filter or falls back to the
// classification tagged in the budget file name.
func resolveFilter(filter, budgetFile string) (core.Classification, error) {
	if filter != "" {
		c := core.ParseClassification(filter)
		if !c.ValidFilter() {
			return "", fmt.Errorf("%w: %q", core.ErrInvalidClassification, filter)
		}
		return c, nil
	}
	if t, ok := core.FileTypeFromName(filepath.Base(budgetFile)); ok && t.IsBudget() {
		return t.Classification(), nil
	}
	return "", errors.New("-filter is required when the budget file name carries no OPEX or CAPEX tag")
}

func parseBudget(path, sheet string) (*budget.Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read budget: %w", err)
	}
	return budget.ParseWorkbook(data, budget.Options{Sheet: sheet, Source: filepath.Base(path)})
}

func parseExpenses(path, sheet string) (*expense.Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read expenses: %w", err)
	}
	return expense.ParseWorkbook(data, expense.Options{Sheet: sheet, Source: filepath.Base(path)})
}

// loadRates returns the static table when one is given and fetches from the
// providers otherwise.
func loadRates(ctx context.Context, opts options) (core.RateTable, string, error) {
	static, err := fx.StaticRates(opts.Rates)
	if err != nil {
		return nil, "", err
	}
	if static != nil {
		return static, "static", nil
	}
	providers, err := fx.ProvidersByName(opts.Providers, &http.Client{Timeout: opts.Timeout}, nil)
	if err != nil {
		return nil, "", err
	}
	snap, err := fx.NewSource(fx.NewRateCache(time.Hour), opts.Timeout, providers...).Rates(ctx)
	if err != nil {
		return nil, "", err
	}
	return snap.Rates, snap.Provider, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
