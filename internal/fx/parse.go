package fx

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"budgetrecon/internal/core"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ParseRates reads "JMD=155.2,EUR=0.92" into a table. USD=1 is added when
// absent.
func ParseRates(s string) (core.RateTable, error) {
	table := core.RateTable{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("rate %q: want CODE=VALUE", pair)
		}
		if err := addRate(table, code, strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}
	return finishTable(table)
}

// LoadRatesFile reads a YAML (or JSON) mapping of currency code to units per
// USD.
func LoadRatesFile(path string) (core.RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rates file: %w", err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rates file: %w", err)
	}
	table := core.RateTable{}
	for code, value := range raw {
		if err := addRate(table, code, value); err != nil {
			return nil, err
		}
	}
	return finishTable(table)
}

// StaticRates reads spec as a rates file path when it names a .yaml, .yml or
// .json file and as an inline "CODE=VALUE" list otherwise. An empty spec
// yields a nil table.
func StaticRates(spec string) (core.RateTable, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	switch strings.ToLower(filepath.Ext(spec)) {
	case ".yaml", ".yml", ".json":
		return LoadRatesFile(spec)
	}
	return ParseRates(spec)
}

func addRate(table core.RateTable, code, value string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fmt.Errorf("rate with empty currency code")
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("rate %s: %w", code, err)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("rate %s must be positive, got %s", code, rate)
	}
	table[code] = rate
	return nil
}

func finishTable(table core.RateTable) (core.RateTable, error) {
	if _, ok := table["USD"]; !ok {
		table["USD"] = decimal.NewFromInt(1)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// ProvidersByName builds providers in the given order. Known names are
// "exchangerate.host", "open.er-api.com" and "static"; static requires a
// table.
func ProvidersByName(names []string, client *http.Client, static core.RateTable) ([]Provider, error) {
	out := make([]Provider, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "":
			continue
		case "exchangerate.host":
			out = append(out, NewExchangerateHost("", client))
		case "open.er-api.com", "open.er-api":
			out = append(out, NewOpenERAPI("", client))
		case "static":
			if len(static) == 0 {
				return nil, fmt.Errorf("static rate provider needs a rate table")
			}
			out = append(out, StaticProvider{Table: static})
		default:
			return nil, fmt.Errorf("unknown rate provider %q", n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no rate providers configured")
	}
	return out, nil
}
