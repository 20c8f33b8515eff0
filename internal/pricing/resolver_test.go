package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"portfoliotracker/internal/quote"
	"portfoliotracker/internal/store"
)

type appended struct {
	symbol string
	price  float64
	asof   string
}

type fakeCache struct {
	latest   map[string]*store.PriceRecord
	appends  []appended
	readErr  error
	writeErr error
}

func (f *fakeCache) LatestPrice(_ context.Context, symbol string) (*store.PriceRecord, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.latest[symbol], nil
}

func (f *fakeCache) AppendPrice(_ context.Context, symbol string, price float64, asof string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.appends = append(f.appends, appended{symbol, price, asof})
	if f.latest == nil {
		f.latest = map[string]*store.PriceRecord{}
	}
	f.latest[symbol] = &store.PriceRecord{Symbol: symbol, Price: price, AsOf: asof}
	return nil
}

type fakeFetcher struct {
	calls int
	quote quote.Quote
	err   error
}

func (f *fakeFetcher) FetchQuote(_ context.Context, symbol string) (quote.Quote, error) {
	f.calls++
	if f.err != nil {
		return quote.Quote{}, f.err
	}
	q := f.quote
	q.Symbol = symbol
	return q, nil
}

func testResolver(cache *fakeCache, fetcher *fakeFetcher, today time.Time) *Resolver {
	r := NewResolver(cache, fetcher, zerolog.Nop())
	r.now = func() time.Time { return today }
	return r
}

func TestResolve_TodayCacheHitSkipsFetch(t *testing.T) {
	today := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	cache := &fakeCache{latest: map[string]*store.PriceRecord{
		"AAPL": {Symbol: "AAPL", Price: 197.55, AsOf: "2026-09-01"},
	}}
	fetcher := &fakeFetcher{}
	r := testResolver(cache, fetcher, today)

	rp, err := r.Resolve(context.Background(), "AAPL", false)
	require.NoError(t, err)
	require.True(t, rp.FromCache)
	require.Equal(t, 197.55, rp.Price)
	require.Equal(t, 0, fetcher.calls)
	require.Empty(t, cache.appends)
}

func TestResolve_StaleCacheFetchesAndAppends(t *testing.T) {
	today := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	cache := &fakeCache{latest: map[string]*store.PriceRecord{
		"AAPL": {Symbol: "AAPL", Price: 190.00, AsOf: "2026-08-28"},
	}}
	fetcher := &fakeFetcher{quote: quote.Quote{Price: 197.55, AsOf: "2026-09-01"}}
	r := testResolver(cache, fetcher, today)

	rp, err := r.Resolve(context.Background(), "AAPL", false)
	require.NoError(t, err)
	require.False(t, rp.FromCache)
	require.Equal(t, 197.55, rp.Price)
	require.Equal(t, 1, fetcher.calls)
	require.Equal(t, []appended{{"AAPL", 197.55, "2026-09-01"}}, cache.appends)
}

func TestResolve_EmptyCacheFetchesOnce(t *testing.T) {
	today := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	cache := &fakeCache{}
	fetcher := &fakeFetcher{quote: quote.Quote{Price: 42.0, AsOf: "2026-09-01"}}
	r := testResolver(cache, fetcher, today)

	rp, err := r.Resolve(context.Background(), "FTEC", false)
	require.NoError(t, err)
	require.False(t, rp.FromCache)
	require.Equal(t, 1, fetcher.calls)
	require.Len(t, cache.appends, 1)
}

func TestResolve_ForceBypassesTodayCache(t *testing.T) {
	today := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	cache := &fakeCache{latest: map[string]*store.PriceRecord{
		"AAPL": {Symbol: "AAPL", Price: 197.55, AsOf: "2026-09-01"},
	}}
	fetcher := &fakeFetcher{quote: quote.Quote{Price: 198.00, AsOf: "2026-09-01"}}
	r := testResolver(cache, fetcher, today)

	rp, err := r.Resolve(context.Background(), "AAPL", true)
	require.NoError(t, err)
	require.False(t, rp.FromCache)
	require.Equal(t, 198.00, rp.Price)
	require.Equal(t, 1, fetcher.calls)
}

func TestResolve_UnparseableAsOfTreatedAsMiss(t *testing.T) {
	today := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	cache := &fakeCache{latest: map[string]*store.PriceRecord{
		"AAPL": {Symbol: "AAPL", Price: 1.0, AsOf: "not-a-date"},
	}}
	fetcher := &fakeFetcher{quote: quote.Quote{Price: 197.55, AsOf: "2026-09-01"}}
	r := testResolver(cache, fetcher, today)

	rp, err := r.Resolve(context.Background(), "AAPL", false)
	require.NoError(t, err)
	require.False(t, rp.FromCache)
	require.Equal(t, 1, fetcher.calls)
}

func TestResolve_FetchFailureWrapped(t *testing.T) {
	today := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	cache := &fakeCache{latest: map[string]*store.PriceRecord{
		"AAPL": {Symbol: "AAPL", Price: 190.00, AsOf: "2026-08-28"},
	}}
	fetcher := &fakeFetcher{err: &quote.RateLimitError{Message: "slow down"}}
	r := testResolver(cache, fetcher, today)

	_, err := r.Resolve(context.Background(), "AAPL", false)
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Equal(t, "AAPL", resErr.Symbol)
	var rl *quote.RateLimitError
	require.ErrorAs(t, err, &rl)
	require.Empty(t, cache.appends, "failed fetch must not be cached")
}

func TestResolve_LedgerReadErrorWrapped(t *testing.T) {
	today := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	cache := &fakeCache{readErr: errors.New("db locked")}
	fetcher := &fakeFetcher{}
	r := testResolver(cache, fetcher, today)

	_, err := r.Resolve(context.Background(), "AAPL", false)
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Equal(t, 0, fetcher.calls)
}
