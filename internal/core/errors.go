package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRatesUnavailable      = errors.New("no currency rate table available")
	ErrReconciliationEmpty   = errors.New("no expenses match the classification filter")
	ErrInvalidClassification = errors.New("classification filter must be OPEX or CAPEX")
	ErrUnknownStatus         = errors.New("unknown classification status")
	ErrDuplicateFile         = errors.New("a file with this name already exists")
	ErrFileNotFound          = errors.New("file not found")
)

// ParseError reports a workbook that cannot be turned into a ledger.
type ParseError struct {
	Source  string
	Missing []string
	Reason  string
	Err     error
}

func (e *ParseError) Error() string {
	src := e.Source
	if src == "" {
		src = "workbook"
	}
	if len(e.Missing) > 0 {
		return fmt.Sprintf("parse %s: missing required columns: %s", src, strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", src, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", src, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CorruptFile wraps a low-level read failure.
func CorruptFile(source string, err error) *ParseError {
	return &ParseError{Source: source, Reason: "corrupt or unsupported file", Err: err}
}

// UnknownCurrencyError lists currency codes that had no usable rate.
type UnknownCurrencyError struct {
	Codes []string
}

func (e *UnknownCurrencyError) Error() string {
	return "unknown currency codes: " + strings.Join(e.Codes, ", ")
}

// UnconvertedError reports expense lines aggregated with a null USD amount.
type UnconvertedError struct {
	Count int
	Codes []string
}

func (e *UnconvertedError) Error() string {
	return fmt.Sprintf("%d expense lines could not be converted to USD (%s)", e.Count, strings.Join(e.Codes, ", "))
}
