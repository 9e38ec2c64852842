package fx

import (
	"sort"
	"strings"

	"budgetrecon/internal/core"

	"github.com/shopspring/decimal"
)

// Convert turns an amount in code into USD. USD amounts are returned as is;
// a code with no rate, or a zero rate, yields null.
func Convert(amount decimal.Decimal, code string, rates core.RateTable) decimal.NullDecimal {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "USD" {
		return decimal.NewNullDecimal(amount)
	}
	rate, ok := rates[code]
	if code == "" || !ok || rate.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(amount.Div(rate))
}

// ConvertLedger returns a copy of lines with AmountUSD set. Lines whose
// currency cannot be converted keep a null AmountUSD and their codes are
// reported in the returned error, which is nil when every line converted.
func ConvertLedger(lines []core.ExpenseLine, rates core.RateTable) ([]core.ExpenseLine, *core.UnknownCurrencyError) {
	out := make([]core.ExpenseLine, len(lines))
	unknown := make(map[string]bool)
	for i, line := range lines {
		line.AmountUSD = Convert(line.AmountNative, line.Currency, rates)
		if !line.AmountUSD.Valid {
			code := line.Currency
			if code == "" {
				code = "(blank)"
			}
			unknown[code] = true
		}
		out[i] = line
	}
	if len(unknown) == 0 {
		return out, nil
	}
	codes := make([]string, 0, len(unknown))
	for c := range unknown {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return out, &core.UnknownCurrencyError{Codes: codes}
}
