package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"portfoliotracker/internal/quote"
	"portfoliotracker/internal/store"
)

// CacheStore is the slice of the price ledger the policy needs.
type CacheStore interface {
	LatestPrice(ctx context.Context, symbol string) (*store.PriceRecord, error)
	AppendPrice(ctx context.Context, symbol string, price float64, asof string) error
}

// Fetcher performs the tiered upstream lookup for one symbol.
type Fetcher interface {
	FetchQuote(ctx context.Context, symbol string) (quote.Quote, error)
}

// ResolvedPrice is the outcome of a single resolution.
type ResolvedPrice struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	AsOf   string  `json:"asof"`
	// FromCache is true when no upstream call was made for this result.
	FromCache bool `json:"from_cache"`
}

// ResolutionError wraps the underlying failure for one symbol.
type ResolutionError struct {
	Symbol string
	Err    error
}

func (e *ResolutionError) Error() string { return fmt.Sprintf("resolving %s: %v", e.Symbol, e.Err) }

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver decides, per symbol and per call, cache-hit versus fetch.
// Freshness granularity is one resolution per symbol per calendar day: a
// cached record counts only if its as-of date is today.
type Resolver struct {
	store   CacheStore
	fetcher Fetcher
	log     zerolog.Logger
	now     func() time.Time
}

func NewResolver(cache CacheStore, fetcher Fetcher, log zerolog.Logger) *Resolver {
	return &Resolver{store: cache, fetcher: fetcher, log: log, now: time.Now}
}

// Resolve returns today's cached price when one exists and force is false;
// otherwise it fetches upstream, appends the result to the ledger, and
// returns it. Fetch failures are wrapped in a ResolutionError; the stale
// fallback on failure is the caller's call, not the policy's.
func (r *Resolver) Resolve(ctx context.Context, symbol string, force bool) (ResolvedPrice, error) {
	if !force {
		rec, err := r.store.LatestPrice(ctx, symbol)
		if err != nil {
			return ResolvedPrice{}, &ResolutionError{Symbol: symbol, Err: err}
		}
		if rec != nil {
			asof, err := parseAsOf(rec.AsOf)
			if err != nil {
				// Unparseable ledger date: treat as a cache miss.
				r.log.Debug().Str("symbol", symbol).Str("asof", rec.AsOf).
					Msg("unparseable cached asof, fetching fresh")
			} else if sameDay(asof, r.now()) {
				return ResolvedPrice{Symbol: symbol, Price: rec.Price, AsOf: rec.AsOf, FromCache: true}, nil
			}
		}
	}

	q, err := r.fetcher.FetchQuote(ctx, symbol)
	if err != nil {
		return ResolvedPrice{}, &ResolutionError{Symbol: symbol, Err: err}
	}
	if err := r.store.AppendPrice(ctx, symbol, q.Price, q.AsOf); err != nil {
		return ResolvedPrice{}, &ResolutionError{Symbol: symbol, Err: err}
	}
	return ResolvedPrice{Symbol: symbol, Price: q.Price, AsOf: q.AsOf, FromCache: false}, nil
}

var asofLayouts = []string{time.DateOnly, time.RFC3339, "2006-1-2"}

func parseAsOf(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range asofLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
