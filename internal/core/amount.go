// Package core provides the domain types shared by the parsers, the currency
// converter and the reconciliation engine.
//
// This file contains the amount normalizer used for every numeric workbook
// cell and the label helpers used to match category names across files.
package core

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var amountNoise = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "", "₹", "",
	" ", "", "\u00a0", "", "'", "", "_", "",
)

// ParseAmount converts free-form numeric or currency text to a decimal.
//
// Currency symbols, ISO code prefixes/suffixes and thousands separators are
// removed. Parentheses and a leading or trailing minus mark negatives. A
// single comma followed by one or two digits, with no dot, is read as a
// decimal comma.
//
// Examples:
//
//	ParseAmount("$1,234.50")  -> 1234.50, true
//	ParseAmount("(200)")      -> -200, true
//	ParseAmount("JMD 15,000") -> 15000, true
//	ParseAmount("12,5")       -> 12.5, true
//	ParseAmount("n/a")        -> 0, false
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = amountNoise.Replace(strings.ToUpper(s))
	s = strings.TrimFunc(s, unicode.IsLetter)
	switch {
	case strings.HasPrefix(s, "-"):
		neg = !neg
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		neg = !neg
		s = s[:len(s)-1]
	}
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimFunc(s, unicode.IsLetter)
	if s == "" || !unicode.IsDigit(rune(s[len(s)-1])) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(normalizeSeparators(s))
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// AmountOrZero is ParseAmount with unparseable input coerced to zero.
func AmountOrZero(s string) decimal.Decimal {
	d, _ := ParseAmount(s)
	return d
}

func normalizeSeparators(s string) string {
	if strings.Contains(s, ".") {
		return strings.ReplaceAll(s, ",", "")
	}
	if strings.Count(s, ",") == 1 {
		i := strings.LastIndex(s, ",")
		if frac := len(s) - i - 1; frac == 1 || frac == 2 {
			return s[:i] + "." + s[i+1:]
		}
	}
	return strings.ReplaceAll(s, ",", "")
}

var labelPattern = regexp.MustCompile(`^([A-Z])\)\s?(.+)$`)

// IsCategoryHeader reports whether s looks like "A) Utilities".
func IsCategoryHeader(s string) bool {
	return labelPattern.MatchString(strings.TrimSpace(s))
}

// SplitCategoryLabel separates an optional "X) " prefix from a category name.
func SplitCategoryLabel(s string) (label, name string) {
	s = strings.TrimSpace(s)
	if m := labelPattern.FindStringSubmatch(s); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return "", s
}

// NormalizeName folds case and collapses whitespace so that names typed
// slightly differently in the budget and expense files still join.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// IsOutOfBudget reports whether category is the out-of-budget sentinel.
func IsOutOfBudget(category string) bool {
	return NormalizeName(category) == NormalizeName(OutOfBudget)
}
