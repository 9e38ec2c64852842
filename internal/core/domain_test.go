package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1200", "1200", true},
		{"$1,234.50", "1234.5", true},
		{" 900.00 ", "900", true},
		{"(200)", "-200", true},
		{"-15.25", "-15.25", true},
		{"15.25-", "-15.25", true},
		{"JMD 15,000", "15000", true},
		{"12,5", "12.5", true},
		{"1,234,567", "1234567", true},
		{"€ 3.10", "3.1", true},
		{"1.5E2", "150", true},
		{"", "0", false},
		{"n/a", "0", false},
		{"abc", "0", false},
		{"-", "0", false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		if ok != tc.ok {
			t.Fatalf("ParseAmount(%q) ok=%v want %v", tc.in, ok, tc.ok)
		}
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("ParseAmount(%q) = %s want %s", tc.in, got, tc.want)
		}
	}
}

func TestSplitCategoryLabel(t *testing.T) {
	cases := []struct {
		in, label, name string
	}{
		{"A) Utilities", "A", "Utilities"},
		{"B)Travel", "B", "Travel"},
		{"  C) Office Supplies ", "C", "Office Supplies"},
		{"Utilities", "", "Utilities"},
		{"a) lower", "", "a) lower"},
		{"AB) Two letters", "", "AB) Two letters"},
	}
	for _, tc := range cases {
		label, name := SplitCategoryLabel(tc.in)
		if label != tc.label || name != tc.name {
			t.Fatalf("SplitCategoryLabel(%q) = (%q,%q) want (%q,%q)", tc.in, label, name, tc.label, tc.name)
		}
	}
	if !IsCategoryHeader("D) Marketing") || IsCategoryHeader("Marketing") {
		t.Fatalf("IsCategoryHeader mismatch")
	}
}

func TestNormalizeNameAndKeys(t *testing.T) {
	if NewLineKey(" Utilities ", "Electricity") != NewLineKey("utilities", "ELECTRICITY") {
		t.Fatalf("keys should match case-insensitively")
	}
	if NormalizeName("Office   Supplies") != "office supplies" {
		t.Fatalf("unexpected normalization: %q", NormalizeName("Office   Supplies"))
	}
	if !IsOutOfBudget("out of  budget") {
		t.Fatalf("expected sentinel match")
	}
}

func TestParseClassification(t *testing.T) {
	if ParseClassification(" opex ") != ClassOPEX {
		t.Fatalf("expected OPEX")
	}
	if ParseClassification("Capex") != ClassCAPEX {
		t.Fatalf("expected CAPEX")
	}
	if ParseClassification("misc") != ClassOther || ClassOther.ValidFilter() {
		t.Fatalf("expected OTHER and invalid as filter")
	}
}

func TestClassifyVariance(t *testing.T) {
	cases := []struct {
		budget, spent string
		want          VarianceStatus
	}{
		{"1200", "800", StatusWithinBudget},
		{"1200", "839.99", StatusWithinBudget},
		{"1200", "900", StatusWarning}, // 75%
		{"1200", "950", StatusWarning},
		{"1200", "840", StatusWarning}, // exactly 70%
		{"1200", "1300", StatusOverspent},
		{"1200", "1200", StatusNoExpenditure},
		{"0", "0", StatusNoExpenditure},
		{"0", "50", StatusOverspent},
		{"1200", "0", StatusWithinBudget},
	}
	for _, tc := range cases {
		if got := ClassifyVariance(dec(tc.budget), dec(tc.spent)); got != tc.want {
			t.Fatalf("ClassifyVariance(%s,%s) = %q want %q", tc.budget, tc.spent, got, tc.want)
		}
	}
}

func TestStatusMonotonicity(t *testing.T) {
	budget := dec("1000")
	prev := ClassifyVariance(budget, dec("2000"))
	for spent := 2000; spent >= 0; spent -= 25 {
		got := ClassifyVariance(budget, decimal.NewFromInt(int64(spent)))
		if prev == StatusWithinBudget && got == StatusOverspent {
			t.Fatalf("status moved from within budget to overspent at spent=%d", spent)
		}
		prev = got
	}
}

func TestReconciliationRowDisplay(t *testing.T) {
	r := NewReconciliationRow("Utilities", "Electricity", dec("1200"), dec("800.123"))
	d := r.Display()
	if d.Budgeted != "1200.00" || d.Spent != "800.12" || d.Variance != "399.88" {
		t.Fatalf("unexpected display: %+v", d)
	}
	if d.Status != string(StatusWithinBudget) || d.Style != StyleGreen {
		t.Fatalf("status = %q, style = %q", d.Status, d.Style)
	}

	warn := NewReconciliationRow("Utilities", "Electricity", dec("1200"), dec("900")).Display()
	if warn.Status != string(StatusWarning) || warn.Style != StyleOrange {
		t.Fatalf("75%% spent: status = %q, style = %q", warn.Status, warn.Style)
	}
}

func TestParseStatusLabel(t *testing.T) {
	got, err := ParseStatusLabel("to be spent (projects)")
	if err != nil || got != StatusToBeSpentProj {
		t.Fatalf("got %q err %v", got, err)
	}
	if got, err := ParseStatusLabel(""); err != nil || got != StatusUnset {
		t.Fatalf("empty label should be unset, got %q %v", got, err)
	}
	if _, err := ParseStatusLabel("maybe"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
	if len(StatusLabels()) != 8 {
		t.Fatalf("expected 8 labels")
	}
}

func TestPeriodIndex(t *testing.T) {
	if PeriodIndex("January") != 0 || PeriodIndex("dec") != 11 || PeriodIndex("Sept") != -1 || PeriodIndex("") != -1 {
		t.Fatalf("unexpected period index")
	}
}

func TestFileTypes(t *testing.T) {
	ft, err := ParseFileType("Budget(OPEX)")
	if err != nil || ft != FileTypeBudgetOPEX || ft.Classification() != ClassOPEX {
		t.Fatalf("got %q %v", ft, err)
	}
	if _, err := ParseFileType("budget"); err == nil {
		t.Fatalf("expected error for untyped budget")
	}
	if got := TaggedName("plan.xlsx", FileTypeBudgetCAPEX); got != "plan~capex.xlsx" {
		t.Fatalf("TaggedName = %q", got)
	}
	if got := TaggedName("plan~capex.xlsx", FileTypeBudgetCAPEX); got != "plan~capex.xlsx" {
		t.Fatalf("TaggedName twice = %q", got)
	}
	if got := TaggedName("spend", FileTypeExpense); got != "spend~expense.xlsx" {
		t.Fatalf("TaggedName no ext = %q", got)
	}
	if ft, ok := FileTypeFromName("uploads/Plan~CAPEX.xlsx"); !ok || ft != FileTypeBudgetCAPEX {
		t.Fatalf("FileTypeFromName = %q, %v", ft, ok)
	}
	if _, ok := FileTypeFromName("plan.xlsx"); ok {
		t.Fatalf("untagged name must not resolve")
	}
}

func TestRateTableValidate(t *testing.T) {
	if err := (RateTable{"USD": dec("1"), "JMD": dec("155")}).Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := (RateTable{"USD": dec("1.0000001")}).Validate(); err != nil {
		t.Fatalf("tolerance should accept: %v", err)
	}
	if err := (RateTable{"USD": dec("0.9")}).Validate(); err == nil {
		t.Fatalf("expected non-USD base to fail")
	}
	if err := (RateTable{"EUR": dec("1")}).Validate(); err == nil {
		t.Fatalf("expected missing USD to fail")
	}
}

func TestParseErrorMessages(t *testing.T) {
	err := &ParseError{Source: "budget", Missing: []string{"Category", "March"}}
	if err.Error() != "parse budget: missing required columns: Category, March" {
		t.Fatalf("got %q", err.Error())
	}
	inner := errors.New("zip: not a valid zip file")
	ce := CorruptFile("expense", inner)
	if !errors.Is(ce, inner) {
		t.Fatalf("expected unwrap")
	}
}
