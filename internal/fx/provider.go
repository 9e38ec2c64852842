// Package fx fetches USD-based exchange rate tables and converts expense
// amounts to USD.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"budgetrecon/internal/core"

	"github.com/shopspring/decimal"
)

const (
	DefaultExchangerateHostURL = "https://api.exchangerate.host"
	DefaultOpenERAPIURL        = "https://open.er-api.com"

	// Responses larger than this are rejected.
	maxBody = 1 << 20
)

// Provider fetches a rate table quoted as units per 1 USD.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (core.RateTable, error)
}

type rateResponse struct {
	Result string                     `json:"result"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// HTTPProvider fetches rates from a public JSON endpoint.
type HTTPProvider struct {
	Client *http.Client
	name   string
	url    string
	check  func(rateResponse) error
}

// NewExchangerateHost queries exchangerate.host with base USD.
func NewExchangerateHost(baseURL string, client *http.Client) *HTTPProvider {
	if baseURL == "" {
		baseURL = DefaultExchangerateHostURL
	}
	return &HTTPProvider{
		Client: clientOrDefault(client),
		name:   "exchangerate.host",
		url:    strings.TrimRight(baseURL, "/") + "/latest?base=USD",
	}
}

// NewOpenERAPI queries open.er-api.com, which reports success in a result
// field.
func NewOpenERAPI(baseURL string, client *http.Client) *HTTPProvider {
	if baseURL == "" {
		baseURL = DefaultOpenERAPIURL
	}
	return &HTTPProvider{
		Client: clientOrDefault(client),
		name:   "open.er-api.com",
		url:    strings.TrimRight(baseURL, "/") + "/v6/latest/USD",
		check: func(r rateResponse) error {
			if r.Result != "success" {
				return fmt.Errorf("result=%q", r.Result)
			}
			return nil
		},
	}
}

func clientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (p *HTTPProvider) Name() string { return p.name }

// Fetch downloads and validates the table. A table that is not USD based is
// rejected.
func (p *HTTPProvider) Fetch(ctx context.Context) (core.RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", p.name, err)
	}

	var data rateResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", p.name, err)
	}
	if p.check != nil {
		if err := p.check(data); err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
	}

	table := make(core.RateTable, len(data.Rates))
	for code, rate := range data.Rates {
		table[strings.ToUpper(code)] = rate
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	return table, nil
}

// StaticProvider serves a fixed table, for offline runs and tests.
type StaticProvider struct {
	Label string
	Table core.RateTable
}

func (p StaticProvider) Name() string {
	if p.Label == "" {
		return "static"
	}
	return p.Label
}

func (p StaticProvider) Fetch(context.Context) (core.RateTable, error) {
	if err := p.Table.Validate(); err != nil {
		return nil, err
	}
	return p.Table.Clone(), nil
}
