package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OutOfBudget is the sentinel category for spend with no matching budget line.
const OutOfBudget = "Out of Budget"

const (
	ClassOPEX  Classification = "OPEX"
	ClassCAPEX Classification = "CAPEX"
	ClassOther Classification = "OTHER"
)

// Months holds the canonical period labels, January first.
var Months = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

type (
	Classification string

	Date struct {
		time.Time
	}

	// RateTable maps a currency code to units per 1 USD.
	RateTable map[string]decimal.Decimal

	BudgetLine struct {
		Row           int
		CategoryLabel string // single letter from an "X) " prefix, may be empty
		Category      string
		SubCategory   string
		Periods       [12]decimal.Decimal
		Total         decimal.Decimal
		Notes         string
	}

	ExpenseLine struct {
		Row            int
		Date           Date // zero when the cell could not be parsed
		CategoryLabel  string
		Category       string
		SubCategory    string
		Vendor         string
		AmountNative   decimal.Decimal
		Currency       string
		Classification Classification
		Notes          string
		AmountUSD      decimal.NullDecimal
	}

	// Diagnostic records a row-level anomaly that was recovered with a default.
	Diagnostic struct {
		Row     int    `json:"row"`
		Column  string `json:"column"`
		Message string `json:"message"`
	}
)

// ParseClassification upper-cases and trims s; anything other than OPEX or
// CAPEX maps to ClassOther.
func ParseClassification(s string) Classification {
	switch c := Classification(strings.ToUpper(strings.TrimSpace(s))); c {
	case ClassOPEX, ClassCAPEX:
		return c
	default:
		return ClassOther
	}
}

// ValidFilter reports whether c can be used to filter a reconciliation.
func (c Classification) ValidFilter() bool {
	return c == ClassOPEX || c == ClassCAPEX
}

func (c Classification) String() string {
	return string(c)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty reports whether the date is unset.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Month returns the month, 0 for an empty date.
func (d Date) Month() int {
	if d.IsEmpty() {
		return 0
	}
	return int(d.Time.Month())
}

func (d Date) String() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsEmpty() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = Date{Time: t}
	return nil
}

// Validate checks the table is usable for conversion.
func (t RateTable) Validate() error {
	usd, ok := t["USD"]
	if !ok {
		return errors.New("rate table has no USD entry")
	}
	if usd.Sub(decimal.NewFromInt(1)).Abs().GreaterThanOrEqual(usdTolerance) {
		return fmt.Errorf("rate table is not USD based: USD=%s", usd)
	}
	return nil
}

// Clone returns a copy safe to hand out to callers.
func (t RateTable) Clone() RateTable {
	out := make(RateTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

var usdTolerance = decimal.New(1, -6)

// Key identifies the (category, sub-category) pair used for joins.
func (l BudgetLine) Key() LineKey {
	return NewLineKey(l.Category, l.SubCategory)
}

func (l ExpenseLine) Key() LineKey {
	return NewLineKey(l.Category, l.SubCategory)
}

// Converted reports whether AmountUSD has been computed.
func (l ExpenseLine) Converted() bool {
	return l.AmountUSD.Valid
}

// LineKey is the normalized join key of a ledger line.
type LineKey struct {
	Category    string
	SubCategory string
}

func NewLineKey(category, sub string) LineKey {
	return LineKey{Category: NormalizeName(category), SubCategory: NormalizeName(sub)}
}
