package fx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgetrecon/internal/core"

	"golang.org/x/sync/singleflight"
)

// DefaultProviderTimeout bounds each provider call.
const DefaultProviderTimeout = 15 * time.Second

// Source serves rate tables from the cache and refreshes them from the
// providers in priority order.
type Source struct {
	cache     *RateCache
	providers []Provider
	timeout   time.Duration
	group     singleflight.Group
}

func NewSource(cache *RateCache, timeout time.Duration, providers ...Provider) *Source {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Source{cache: cache, providers: providers, timeout: timeout}
}

// Providers returns the provider names in fallback order.
func (s *Source) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// Rates returns the cached table while it is fresh and refreshes it
// otherwise. When every provider fails the last known table is returned with
// Stale set; with nothing cached the error wraps core.ErrRatesUnavailable.
func (s *Source) Rates(ctx context.Context) (Snapshot, error) {
	if snap, ok := s.cache.Fresh(); ok {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Refresh fetches a new table even if the cached one is fresh. Concurrent
// callers share a single fetch.
func (s *Source) Refresh(ctx context.Context) (Snapshot, error) {
	v, err, _ := s.group.Do("rates", func() (interface{}, error) {
		// The fetch is shared, so one caller going away must not cancel it.
		return s.fetch(context.WithoutCancel(ctx))
	})
	if err == nil {
		return v.(Snapshot), nil
	}

	if snap, ok := s.cache.LastKnown(); ok {
		slog.WarnContext(ctx, "Using last known FX rates, providers unavailable",
			"provider", snap.Provider, "fetched_at", snap.FetchedAt, "error", err)
		snap.Stale = true
		return snap, nil
	}
	return Snapshot{}, fmt.Errorf("%w: %v", core.ErrRatesUnavailable, err)
}

func (s *Source) fetch(ctx context.Context) (Snapshot, error) {
	if len(s.providers) == 0 {
		return Snapshot{}, errors.New("no rate providers configured")
	}
	var errs []error
	for _, p := range s.providers {
		table, err := s.fetchOne(ctx, p)
		if err != nil {
			slog.WarnContext(ctx, "FX provider failed", "provider", p.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		snap := s.cache.Store(table, p.Name())
		slog.InfoContext(ctx, "FX rates refreshed", "provider", p.Name(), "currencies", len(table))
		return snap, nil
	}
	return Snapshot{}, errors.Join(errs...)
}

func (s *Source) fetchOne(ctx context.Context, p Provider) (core.RateTable, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	table, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	return table, nil
}
