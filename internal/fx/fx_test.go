package fx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetrecon/internal/core"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeProvider struct {
	name  string
	table core.RateTable
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(ctx context.Context) (core.RateTable, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.table.Clone(), nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(dur time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(dur)
	c.mu.Unlock()
}

func newCache(c *clock) *RateCache {
	rc := NewRateCache(time.Hour)
	rc.SetClock(c.Now)
	return rc
}

func TestConvert(t *testing.T) {
	rates := core.RateTable{"USD": d("1"), "JMD": d("155"), "EUR": d("0.92"), "ZZZ": d("0")}

	got := Convert(d("100"), "JMD", rates)
	if !got.Valid || !got.Decimal.Round(3).Equal(d("0.645")) {
		t.Fatalf("JMD conversion = %v", got)
	}
	if got := Convert(d("12.34"), "usd", core.RateTable{}); !got.Valid || !got.Decimal.Equal(d("12.34")) {
		t.Fatalf("USD must pass through unchanged, got %v", got)
	}
	for _, code := range []string{"XYZ", "ZZZ", ""} {
		if got := Convert(d("1"), code, rates); got.Valid {
			t.Fatalf("Convert(%q) should be null, got %v", code, got)
		}
	}
}

func TestConvertUSDIdentity(t *testing.T) {
	tables := []core.RateTable{
		{"USD": d("1")},
		{"USD": d("1.0000001"), "EUR": d("0.9")},
	}
	for _, rates := range tables {
		for _, a := range []string{"0", "-5.5", "1234567.891"} {
			if got := Convert(d(a), "USD", rates); !got.Decimal.Equal(d(a)) {
				t.Fatalf("Convert(%s, USD) = %s", a, got.Decimal)
			}
		}
	}
}

func TestConvertLedger(t *testing.T) {
	lines := []core.ExpenseLine{
		{AmountNative: d("100"), Currency: "JMD"},
		{AmountNative: d("5"), Currency: "XYZ"},
		{AmountNative: d("7"), Currency: "USD"},
		{AmountNative: d("1"), Currency: "XYZ"},
	}
	out, unknown := ConvertLedger(lines, core.RateTable{"USD": d("1"), "JMD": d("155")})
	if unknown == nil || len(unknown.Codes) != 1 || unknown.Codes[0] != "XYZ" {
		t.Fatalf("unknown = %+v", unknown)
	}
	if out[1].AmountUSD.Valid || out[3].AmountUSD.Valid {
		t.Fatalf("XYZ lines must stay null")
	}
	if !out[2].AmountUSD.Valid || !out[2].AmountUSD.Decimal.Equal(d("7")) {
		t.Fatalf("USD line = %v", out[2].AmountUSD)
	}
	if lines[0].AmountUSD.Valid {
		t.Fatalf("input lines must not be mutated")
	}

	if _, unknown := ConvertLedger(lines[2:3], core.RateTable{"USD": d("1")}); unknown != nil {
		t.Fatalf("expected no unknown codes, got %v", unknown)
	}
}

func TestSourceFallsBackToNextProvider(t *testing.T) {
	c := &clock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	down := &fakeProvider{name: "down", err: errors.New("503")}
	notUSD := &fakeProvider{name: "eur-based", table: core.RateTable{"USD": d("1.08"), "EUR": d("1")}}
	good := &fakeProvider{name: "good", table: core.RateTable{"USD": d("1"), "JMD": d("155")}}

	src := NewSource(newCache(c), time.Second, down, notUSD, good)
	snap, err := src.Rates(context.Background())
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	if snap.Provider != "good" || snap.Stale || !snap.Rates["JMD"].Equal(d("155")) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// Fresh cache hit: no provider is called again.
	c.Advance(30 * time.Minute)
	if _, err := src.Rates(context.Background()); err != nil {
		t.Fatalf("rates: %v", err)
	}
	if good.calls.Load() != 1 {
		t.Fatalf("expected cached table, provider called %d times", good.calls.Load())
	}

	c.Advance(31 * time.Minute)
	if _, err := src.Rates(context.Background()); err != nil {
		t.Fatalf("rates: %v", err)
	}
	if good.calls.Load() != 2 {
		t.Fatalf("expected refresh after TTL, provider called %d times", good.calls.Load())
	}
}

func TestSourceLastKnownGood(t *testing.T) {
	c := &clock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	p := &fakeProvider{name: "p", table: core.RateTable{"USD": d("1"), "EUR": d("0.9")}}
	src := NewSource(newCache(c), time.Second, p)

	if _, err := src.Rates(context.Background()); err != nil {
		t.Fatalf("rates: %v", err)
	}
	p.err = errors.New("outage")
	c.Advance(2 * time.Hour)

	snap, err := src.Rates(context.Background())
	if err != nil {
		t.Fatalf("expected stale table, got %v", err)
	}
	if !snap.Stale || !snap.Rates["EUR"].Equal(d("0.9")) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSourceUnavailable(t *testing.T) {
	src := NewSource(NewRateCache(0), time.Second, &fakeProvider{name: "p", err: errors.New("down")})
	_, err := src.Rates(context.Background())
	if !errors.Is(err, core.ErrRatesUnavailable) {
		t.Fatalf("expected ErrRatesUnavailable, got %v", err)
	}
}

func TestSourceProviderTimeout(t *testing.T) {
	slow := &fakeProvider{name: "slow", delay: time.Minute, table: core.RateTable{"USD": d("1")}}
	fast := &fakeProvider{name: "fast", table: core.RateTable{"USD": d("1")}}
	src := NewSource(NewRateCache(0), 20*time.Millisecond, slow, fast)

	start := time.Now()
	snap, err := src.Rates(context.Background())
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	if snap.Provider != "fast" || time.Since(start) > 5*time.Second {
		t.Fatalf("slow provider was not abandoned: %+v", snap)
	}
}

func TestSourceConcurrentRefresh(t *testing.T) {
	p := &fakeProvider{name: "p", delay: 50 * time.Millisecond, table: core.RateTable{"USD": d("1")}}
	src := NewSource(NewRateCache(0), time.Second, p)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := src.Rates(context.Background()); err != nil {
				t.Errorf("rates: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := p.calls.Load(); n > 2 {
		t.Fatalf("expected shared refresh, provider called %d times", n)
	}
}

func TestHTTPProviders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/latest":
			if r.URL.Query().Get("base") != "USD" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"base":"USD","rates":{"USD":1,"JMD":155.25,"eur":0.92}}`))
		case "/v6/latest/USD":
			w.Write([]byte(`{"result":"error","rates":{"USD":1}}`))
		case "/broken/latest":
			w.Write([]byte(`{"rates":{"EUR":1}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	table, err := NewExchangerateHost(srv.URL, srv.Client()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("exchangerate.host: %v", err)
	}
	if !table["JMD"].Equal(d("155.25")) || !table["EUR"].Equal(d("0.92")) {
		t.Fatalf("unexpected table: %v", table)
	}

	if _, err := NewOpenERAPI(srv.URL, srv.Client()).Fetch(context.Background()); err == nil {
		t.Fatalf("open.er-api with result=error must be rejected")
	}
	if _, err := NewExchangerateHost(srv.URL+"/broken", srv.Client()).Fetch(context.Background()); err == nil {
		t.Fatalf("table without USD must be rejected")
	}
	if _, err := NewOpenERAPI(srv.URL+"/missing", srv.Client()).Fetch(context.Background()); err == nil {
		t.Fatalf("404 must be rejected")
	}
}
