package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"portfoliotracker/internal/store"
)

// DefaultCooldown stays under the provider's 5-calls-per-minute ceiling
// with margin.
const DefaultCooldown = 12 * time.Second

// PriceResolver resolves one symbol; satisfied by *Resolver.
type PriceResolver interface {
	Resolve(ctx context.Context, symbol string, force bool) (ResolvedPrice, error)
}

// LatestReader is the read-only slice of the ledger used for stale fallback.
type LatestReader interface {
	LatestPrice(ctx context.Context, symbol string) (*store.PriceRecord, error)
}

// Failure records one symbol that could not be freshly resolved.
type Failure struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Result aggregates a batch refresh.
type Result struct {
	Prices    map[string]ResolvedPrice `json:"prices"`
	Failures  []Failure                `json:"failures,omitempty"`
	CallsMade int                      `json:"calls_made"`
}

// Empty reports whether the batch made no upstream calls and resolved
// no prices at all.
func (r Result) Empty() bool { return r.CallsMade == 0 && len(r.Prices) == 0 }

// Diagnose explains an empty batch result, distinguishing a missing key
// from exhausted upstream attempts. Returns "" for non-empty results.
func (r Result) Diagnose(keyConfigured bool) string {
	if !r.Empty() {
		return ""
	}
	if !keyConfigured {
		return "no alpha vantage key configured; cannot fetch live prices"
	}
	return "no prices fetched (possibly rate limit or premium endpoint); try again in ~60 seconds"
}

// Refresher drives the resolver across a symbol list sequentially. Upstream
// calls share one rate budget and the provider documents no concurrency
// safety, so symbols are never fetched in parallel; a fixed cooldown follows
// every real upstream call, and cache-served resolutions cost nothing.
type Refresher struct {
	resolver PriceResolver
	ledger   LatestReader
	cooldown time.Duration
	pause    func(ctx context.Context, d time.Duration) error
	log      zerolog.Logger
}

// RefresherOption is a configuration option for a Refresher.
type RefresherOption func(*Refresher)

// WithCooldown overrides the pause taken after each real upstream call.
func WithCooldown(d time.Duration) RefresherOption {
	return func(f *Refresher) {
		f.cooldown = d
	}
}

func NewRefresher(resolver PriceResolver, ledger LatestReader, log zerolog.Logger, options ...RefresherOption) *Refresher {
	f := &Refresher{
		resolver: resolver,
		ledger:   ledger,
		cooldown: DefaultCooldown,
		pause:    waitFor,
		log:      log,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

// RefreshAll resolves every symbol in order, collecting per-symbol failures
// instead of aborting. A failed symbol degrades to whatever stale ledger row
// exists, for display purposes only. The error return is non-nil only when
// the context is canceled mid-batch; the partial Result is still valid then.
func (f *Refresher) RefreshAll(ctx context.Context, symbols []string, force bool) (Result, error) {
	res := Result{Prices: make(map[string]ResolvedPrice, len(symbols))}

	for _, sym := range symbols {
		rp, err := f.resolver.Resolve(ctx, sym, force)
		if err != nil {
			f.log.Warn().Str("symbol", sym).Err(err).Msg("refresh failed")
			res.Failures = append(res.Failures, Failure{Symbol: sym, Reason: err.Error()})
			// Best-effort stale fallback; no re-fetch.
			if rec, lerr := f.ledger.LatestPrice(ctx, sym); lerr == nil && rec != nil {
				res.Prices[sym] = ResolvedPrice{Symbol: sym, Price: rec.Price, AsOf: rec.AsOf, FromCache: true}
			}
			continue
		}

		res.Prices[sym] = rp
		if !rp.FromCache {
			res.CallsMade++
			f.log.Debug().Str("symbol", sym).Dur("cooldown", f.cooldown).Msg("fetched upstream, cooling down")
			if err := f.pause(ctx, f.cooldown); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
