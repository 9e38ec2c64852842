package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"budgetrecon/internal/core"
	"budgetrecon/internal/fx"
	"budgetrecon/internal/sheets/memory"
	"budgetrecon/internal/workbook"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeFiles struct {
	files map[string]core.UploadedFile
	grids map[string]workbook.Grid
}

func (f *fakeFiles) File(_ context.Context, name string) (core.UploadedFile, error) {
	file, ok := f.files[name]
	if !ok {
		return core.UploadedFile{}, fmt.Errorf("%w: %s", core.ErrFileNotFound, name)
	}
	return file, nil
}

func (f *fakeFiles) Grid(_ context.Context, file core.UploadedFile, _ string) (workbook.Grid, error) {
	return f.grids[file.Name], nil
}

type fakeRates struct {
	snap fx.Snapshot
	err  error
}

func (f fakeRates) Rates(context.Context) (fx.Snapshot, error) { return f.snap, f.err }

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]core.ClassificationEntry, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Save(context.Context, string, []core.ClassificationEntry, string) error {
	return errors.New("disk on fire")
}

func rows(values ...[]string) workbook.Grid {
	out := make([][]interface{}, len(values))
	for i, r := range values {
		out[i] = make([]interface{}, len(r))
		for j, c := range r {
			out[i][j] = c
		}
	}
	return workbook.FromValues("Sheet1", 1, out)
}

func monthly(category, sub, amount string) []string {
	r := []string{category, sub}
	for range core.Months {
		r = append(r, amount)
	}
	return r
}

func fixture() *fakeFiles {
	budgetHeader := append([]string{"Category", "Subcategory"}, core.Months[:]...)
	expenseHeader := []string{"Date", "Category", "Subcategory", "Vendor", "Amount", "Currency", "Classification", "Notes"}
	return &fakeFiles{
		files: map[string]core.UploadedFile{
			"plan~opex.xlsx":     {Name: "plan~opex.xlsx", Type: core.FileTypeBudgetOPEX},
			"spend~expense.xlsx": {Name: "spend~expense.xlsx", Type: core.FileTypeExpense},
		},
		grids: map[string]workbook.Grid{
			"plan~opex.xlsx": rows(
				budgetHeader,
				monthly("Utilities", "Electricity", "100"),
				monthly("", "Water", "10"),
			),
			"spend~expense.xlsx": rows(
				expenseHeader,
				[]string{"2025-01-15", "Utilities", "Electricity", "Power Co", "900", "USD", "OPEX", ""},
				[]string{"2025-02-03", "Utilities", "Water", "Water Board", "1550", "JMD", "OPEX", ""},
				[]string{"2025-02-10", "Snacks", "Coffee", "Cafe", "50", "USD", "OPEX", ""},
				[]string{"2025-03-01", "Travel", "Flights", "Airline", "500", "USD", "CAPEX", ""},
				[]string{"2025-03-02", "Utilities", "Water", "Mystery", "5", "XYZ", "OPEX", ""},
			),
		},
	}
}

var staticRates = fakeRates{snap: fx.Snapshot{
	Rates:     core.RateTable{"USD": d("1"), "JMD": d("155")},
	Provider:  "static",
	FetchedAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
}}

func TestGenerate(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_ = store.Save(ctx, "plan~opex.xlsx", []core.ClassificationEntry{
		{Category: "Utilities", SubCategory: "Electricity", Period: "January", Status: core.StatusSpent, Amount: d("100")},
	}, "ana")

	svc := NewService(fixture(), staticRates, store, time.Second)
	rep, err := svc.Generate(ctx, Request{BudgetFile: "plan~opex.xlsx", ExpenseFile: "spend~expense.xlsx"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if rep.Filter != core.ClassOPEX {
		t.Fatalf("filter must default from the budget type, got %q", rep.Filter)
	}
	res := rep.Result
	if res.Expenses != 4 {
		t.Fatalf("expenses in scope = %d, want 4", res.Expenses)
	}
	want := []struct {
		sub             string
		budgeted, spent string
		outOfBudget     bool
	}{
		{"Electricity", "1200", "900", false},
		{"Water", "120", "10", false},
		{"Coffee", "0", "50", true},
	}
	if len(res.Subcategories) != len(want) {
		t.Fatalf("subcategory rows = %+v", res.Subcategories)
	}
	for i, w := range want {
		got := res.Subcategories[i]
		if got.SubCategory != w.sub || !got.Budgeted.Equal(d(w.budgeted)) || !got.Spent.Equal(d(w.spent)) || got.OutOfBudget != w.outOfBudget {
			t.Errorf("row %d = %+v", i, got)
		}
	}

	var unknown *core.UnknownCurrencyError
	var unconverted *core.UnconvertedError
	var sawUnknown, sawUnconverted bool
	for _, w := range rep.Warnings {
		if errors.As(w, &unknown) && unknown.Codes[0] == "XYZ" {
			sawUnknown = true
		}
		if errors.As(w, &unconverted) && unconverted.Count == 1 {
			sawUnconverted = true
		}
	}
	if !sawUnknown || !sawUnconverted {
		t.Fatalf("warnings = %v", rep.Warnings)
	}

	if len(rep.Trend) != 2 || rep.Trend[0].Month != "2025-01" || !rep.Trend[1].Spent.Equal(d("60")) {
		t.Fatalf("trend = %+v", rep.Trend)
	}
	if len(rep.Vendors) != 5 || len(rep.Categories) != 3 {
		t.Fatalf("options = %v / %v", rep.Vendors, rep.Categories)
	}
	if !rep.Summary.BudgetTotal.Equal(d("1320")) || !rep.Summary.Balance.Equal(d("360")) {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if !rep.Summary.Totals[2].Total.Equal(d("100")) {
		t.Fatalf("spent label total = %s", rep.Summary.Totals[2].Total)
	}
	if rep.Rates == nil || rep.Rates.Provider != "static" {
		t.Fatalf("rates = %+v", rep.Rates)
	}
}

func TestGenerateFilters(t *testing.T) {
	svc := NewService(fixture(), staticRates, nil, time.Second)
	rep, err := svc.Generate(context.Background(), Request{
		BudgetFile:  "plan~opex.xlsx",
		ExpenseFile: "spend~expense.xlsx",
		Vendors:     []string{" power co "},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if rep.Result.Expenses != 1 || len(rep.Result.Subcategories) != 2 {
		t.Fatalf("vendor filter: %+v", rep.Result)
	}

	rep, err = svc.Generate(context.Background(), Request{
		BudgetFile:  "plan~opex.xlsx",
		ExpenseFile: "spend~expense.xlsx",
		Filter:      "capex",
	})
	if err != nil {
		t.Fatalf("generate capex: %v", err)
	}
	if rep.Result.Expenses != 1 || rep.Filter != core.ClassCAPEX {
		t.Fatalf("capex filter: %+v", rep.Result)
	}

	rep, err = svc.Generate(context.Background(), Request{
		BudgetFile:  "plan~opex.xlsx",
		ExpenseFile: "spend~expense.xlsx",
		Categories:  []string{"Nothing"},
	})
	if err != nil {
		t.Fatalf("generate empty: %v", err)
	}
	found := false
	for _, w := range rep.Warnings {
		if errors.Is(w, core.ErrReconciliationEmpty) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected empty reconciliation warning, got %v", rep.Warnings)
	}
}

func TestGenerateDegrades(t *testing.T) {
	noRates := fakeRates{err: fmt.Errorf("%w: all providers down", core.ErrRatesUnavailable)}
	svc := NewService(fixture(), noRates, failingStore{}, time.Second)
	rep, err := svc.Generate(context.Background(), Request{BudgetFile: "plan~opex.xlsx", ExpenseFile: "spend~expense.xlsx"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if rep.Rates != nil {
		t.Fatalf("rates must be nil when unavailable")
	}
	var sawRates, sawStore bool
	for _, w := range rep.Warnings {
		if errors.Is(w, core.ErrRatesUnavailable) {
			sawRates = true
		}
		if strings.Contains(w.Error(), "load classifications") {
			sawStore = true
		}
	}
	if !sawRates || !sawStore {
		t.Fatalf("warnings = %v", rep.Warnings)
	}
	// USD lines still convert without a table.
	if !rep.Result.Subcategories[0].Spent.Equal(d("900")) {
		t.Fatalf("electricity spent = %s", rep.Result.Subcategories[0].Spent)
	}
}

func TestGenerateUnknownCurrencyOnlyInScope(t *testing.T) {
	files := fixture()
	files.grids["spend~expense.xlsx"] = rows(
		[]string{"Date", "Category", "Subcategory", "Vendor", "Amount", "Currency", "Classification", "Notes"},
		[]string{"2025-01-15", "Utilities", "Electricity", "Power Co", "900", "USD", "OPEX", ""},
		[]string{"2025-02-01", "Travel", "Flights", "Airline", "200", "GBP", "CAPEX", ""},
	)
	svc := NewService(files, staticRates, nil, time.Second)

	rep, err := svc.Generate(context.Background(), Request{BudgetFile: "plan~opex.xlsx", ExpenseFile: "spend~expense.xlsx"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var unknown *core.UnknownCurrencyError
	for _, w := range rep.Warnings {
		if errors.As(w, &unknown) {
			t.Fatalf("OPEX report warned about a CAPEX currency: %v", w)
		}
	}

	rep, err = svc.Generate(context.Background(), Request{BudgetFile: "plan~opex.xlsx", ExpenseFile: "spend~expense.xlsx", Filter: "capex"})
	if err != nil {
		t.Fatalf("generate capex: %v", err)
	}
	found := false
	for _, w := range rep.Warnings {
		if errors.As(w, &unknown) && len(unknown.Codes) == 1 && unknown.Codes[0] == "GBP" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected GBP warning in CAPEX report, got %v", rep.Warnings)
	}
}

func TestInScope(t *testing.T) {
	lines := []core.ExpenseLine{
		{Vendor: "a", Classification: core.ClassOPEX},
		{Vendor: "b", Classification: core.ClassCAPEX},
		{Vendor: "c", Classification: core.ClassOther},
	}
	got := InScope(lines, core.ClassCAPEX)
	if len(got) != 1 || got[0].Vendor != "b" {
		t.Fatalf("InScope = %+v", got)
	}
}

func TestGenerateErrors(t *testing.T) {
	svc := NewService(fixture(), staticRates, nil, time.Second)
	ctx := context.Background()
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing budget", Request{BudgetFile: "nope", ExpenseFile: "spend~expense.xlsx"}, core.ErrFileNotFound},
		{"expense as budget", Request{BudgetFile: "spend~expense.xlsx", ExpenseFile: "spend~expense.xlsx"}, ErrWrongFileType},
		{"budget as expense", Request{BudgetFile: "plan~opex.xlsx", ExpenseFile: "plan~opex.xlsx"}, ErrWrongFileType},
		{"bad filter", Request{BudgetFile: "plan~opex.xlsx", ExpenseFile: "spend~expense.xlsx", Filter: "misc"}, core.ErrInvalidClassification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Generate(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	files := fixture()
	files.grids["plan~opex.xlsx"] = rows([]string{"nothing", "useful"})
	svc = NewService(files, staticRates, nil, time.Second)
	var pe *core.ParseError
	if _, err := svc.Generate(ctx, Request{BudgetFile: "plan~opex.xlsx", ExpenseFile: "spend~expense.xlsx"}); !errors.As(err, &pe) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestMonthlyTrendSkipsUndated(t *testing.T) {
	lines := []core.ExpenseLine{
		{Date: core.NewDate(2025, 3, 1), AmountUSD: decimal.NewNullDecimal(d("5"))},
		{AmountUSD: decimal.NewNullDecimal(d("7"))},
		{Date: core.NewDate(2024, 12, 31), AmountUSD: decimal.NewNullDecimal(d("1"))},
		{Date: core.NewDate(2025, 3, 9)},
	}
	got := MonthlyTrend(lines)
	if len(got) != 2 || got[0].Month != "2024-12" || !got[1].Spent.Equal(d("5")) {
		t.Fatalf("trend = %+v", got)
	}
}
