// Package report generates a reconciliation report from two registered
// workbooks: it parses both concurrently, converts spend to USD, applies the
// request filters and reconciles.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"budgetrecon/internal/budget"
	"budgetrecon/internal/classification"
	"budgetrecon/internal/core"
	"budgetrecon/internal/expense"
	"budgetrecon/internal/fx"
	"budgetrecon/internal/reconcile"
	ports "budgetrecon/internal/sheets"
	"budgetrecon/internal/workbook"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds one report generation.
const DefaultTimeout = 60 * time.Second

var ErrWrongFileType = errors.New("file has the wrong type for this role")

// FileSource resolves registered workbooks.
type FileSource interface {
	File(ctx context.Context, name string) (core.UploadedFile, error)
	Grid(ctx context.Context, f core.UploadedFile, sheet string) (workbook.Grid, error)
}

// RateSource yields the current rate table.
type RateSource interface {
	Rates(ctx context.Context) (fx.Snapshot, error)
}

// Request selects the workbooks and filters of a report. An empty Filter
// means the classification implied by the budget file type.
type Request struct {
	BudgetFile   string              `json:"budget_file"`
	ExpenseFile  string              `json:"expense_file"`
	BudgetSheet  string              `json:"budget_sheet,omitempty"`
	ExpenseSheet string              `json:"expense_sheet,omitempty"`
	Filter       core.Classification `json:"filter,omitempty"`
	Vendors      []string            `json:"vendors,omitempty"`
	Categories   []string            `json:"categories,omitempty"`
}

// MonthTotal is the converted spend of one calendar month ("2025-01").
type MonthTotal struct {
	Month string          `json:"month"`
	Spent decimal.Decimal `json:"spent"`
}

// Report is a generated reconciliation.
type Report struct {
	Request      Request
	Filter       core.Classification
	BudgetFormat budget.Format
	Result       *reconcile.Result
	// Rates is nil when no table could be obtained.
	Rates *fx.Snapshot
	// Vendors and Categories list the options of the whole expense ledger,
	// before the request filters.
	Vendors            []string
	Categories         []string
	Trend              []MonthTotal
	Summary            classification.Summary
	BudgetDiagnostics  []core.Diagnostic
	ExpenseDiagnostics []core.Diagnostic
	// Warnings are non-fatal problems: stale or missing rates, unknown
	// currencies, reconciliation warnings and classification load failures.
	Warnings []error
	Duration time.Duration
}

type Service struct {
	files   FileSource
	rates   RateSource
	store   ports.ClassificationStore
	timeout time.Duration
}

// NewService wires the collaborators; store may be nil to skip the
// classification summary.
func NewService(files FileSource, rates RateSource, store ports.ClassificationStore, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{files: files, rates: rates, store: store, timeout: timeout}
}

// Generate builds the report for req. Parse failures and an invalid filter are
// errors; everything else degrades into Report.Warnings.
func (s *Service) Generate(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	budgetFile, err := s.files.File(ctx, req.BudgetFile)
	if err != nil {
		return nil, fmt.Errorf("budget file: %w", err)
	}
	if !budgetFile.Type.IsBudget() {
		return nil, fmt.Errorf("%w: %s is %s, want a budget", ErrWrongFileType, budgetFile.Name, budgetFile.Type)
	}
	expenseFile, err := s.files.File(ctx, req.ExpenseFile)
	if err != nil {
		return nil, fmt.Errorf("expense file: %w", err)
	}
	if expenseFile.Type != core.FileTypeExpense {
		return nil, fmt.Errorf("%w: %s is %s, want an expense file", ErrWrongFileType, expenseFile.Name, expenseFile.Type)
	}

	filter := core.ParseClassification(string(req.Filter))
	if req.Filter == "" {
		filter = budgetFile.Type.Classification()
	}
	if !filter.ValidFilter() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidClassification, req.Filter)
	}

	var (
		plan     *budget.Ledger
		spend    *expense.Ledger
		snap     fx.Snapshot
		ratesErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		grid, err := s.files.Grid(gctx, budgetFile, req.BudgetSheet)
		if err != nil {
			return err
		}
		plan, err = budget.Parse(grid, budgetFile.Name)
		return err
	})
	g.Go(func() error {
		grid, err := s.files.Grid(gctx, expenseFile, req.ExpenseSheet)
		if err != nil {
			return err
		}
		spend, err = expense.Parse(grid, expenseFile.Name)
		return err
	})
	g.Go(func() error {
		snap, ratesErr = s.rates.Rates(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &Report{
		Request:            req,
		Filter:             filter,
		BudgetFormat:       plan.Format,
		Vendors:            spend.Vendors(),
		Categories:         spend.Categories(),
		BudgetDiagnostics:  plan.Diagnostics,
		ExpenseDiagnostics: spend.Diagnostics,
	}

	var rates core.RateTable
	switch {
	case ratesErr != nil:
		rep.Warnings = append(rep.Warnings, ratesErr)
	default:
		rates = snap.Rates
		rep.Rates = &snap
		if snap.Stale {
			rep.Warnings = append(rep.Warnings, fmt.Errorf("using stale rates from %s fetched at %s",
				snap.Provider, snap.FetchedAt.Format(time.RFC3339)))
		}
	}

	lines := InScope(FilterExpenses(spend.Lines, req.Vendors, req.Categories), filter)
	converted, unknown := fx.ConvertLedger(lines, rates)
	if unknown != nil && rates != nil {
		rep.Warnings = append(rep.Warnings, unknown)
	}

	res, err := reconcile.Reconcile(plan.Lines, converted, filter)
	if err != nil {
		return nil, err
	}
	rep.Result = res
	rep.Warnings = append(rep.Warnings, res.Warnings...)

	rep.Trend = MonthlyTrend(converted)
	rep.Summary = s.summarize(ctx, budgetFile.Name, plan.Lines, converted, rep)
	rep.Duration = time.Since(start)

	slog.InfoContext(ctx, "Report generated",
		"budget_file", budgetFile.Name,
		"expense_file", expenseFile.Name,
		"filter", filter,
		"expenses", res.Expenses,
		"rows", len(res.Subcategories),
		"warnings", len(rep.Warnings),
		"duration", rep.Duration)
	return rep, nil
}

func (s *Service) summarize(ctx context.Context, fileKey string, plan []core.BudgetLine, spent []core.ExpenseLine, rep *Report) classification.Summary {
	var entries []core.ClassificationEntry
	if s.store != nil {
		var err error
		entries, err = s.store.Load(ctx, fileKey)
		if err != nil {
			slog.WarnContext(ctx, "Failed to load classifications", "file", fileKey, "error", err)
			rep.Warnings = append(rep.Warnings, fmt.Errorf("load classifications: %w", err))
			entries = nil
		}
	}
	return classification.Summarize(entries, plan, classification.SpentUSD(spent))
}

// FilterExpenses keeps lines whose vendor is in vendors and whose category is
// in categories; an empty list does not filter. Matching ignores case and
// surrounding space.
func FilterExpenses(lines []core.ExpenseLine, vendors, categories []string) []core.ExpenseLine {
	if len(vendors) == 0 && len(categories) == 0 {
		return lines
	}
	vset, cset := nameSet(vendors), nameSet(categories)
	out := make([]core.ExpenseLine, 0, len(lines))
	for _, l := range lines {
		if len(vset) > 0 && !vset[core.NormalizeName(l.Vendor)] {
			continue
		}
		if len(cset) > 0 && !cset[core.NormalizeName(l.Category)] {
			continue
		}
		out = append(out, l)
	}
	return out
}

// InScope keeps the lines classified as filter.
func InScope(lines []core.ExpenseLine, filter core.Classification) []core.ExpenseLine {
	out := make([]core.ExpenseLine, 0, len(lines))
	for _, l := range lines {
		if l.Classification == filter {
			out = append(out, l)
		}
	}
	return out
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if k := core.NormalizeName(n); k != "" {
			set[k] = true
		}
	}
	return set
}

// MonthlyTrend sums converted spend per calendar month, oldest first. Undated
// and unconverted lines are left out.
func MonthlyTrend(lines []core.ExpenseLine) []MonthTotal {
	sums := make(map[string]decimal.Decimal)
	for _, l := range lines {
		if l.Date.IsEmpty() || !l.AmountUSD.Valid {
			continue
		}
		k := l.Date.Format("2006-01")
		if prev, ok := sums[k]; ok {
			sums[k] = prev.Add(l.AmountUSD.Decimal)
		} else {
			sums[k] = l.AmountUSD.Decimal
		}
	}
	out := make([]MonthTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, MonthTotal{Month: k, Spent: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
