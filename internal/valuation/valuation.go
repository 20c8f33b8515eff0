package valuation

import (
	"github.com/shopspring/decimal"

	"portfoliotracker/internal/pricing"
	"portfoliotracker/internal/store"
)

// Position is a holding valued against its freshest known price.
type Position struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
	Currency  string          `json:"currency"`
	// Priced is false when no price is known for the symbol; the position
	// then values at zero.
	Priced        bool            `json:"priced"`
	LastPrice     decimal.Decimal `json:"last_price"`
	AsOf          string          `json:"asof,omitempty"`
	FromCache     bool            `json:"from_cache,omitempty"`
	MarketValue   decimal.Decimal `json:"market_value"`
	PnLPerShare   decimal.Decimal `json:"pnl_per_share"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// Totals aggregates a whole portfolio.
type Totals struct {
	MarketValue   decimal.Decimal `json:"market_value"`
	Cost          decimal.Decimal `json:"cost"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// Summary is the portfolio overview: valued positions, totals, and
// per-symbol allocation weights by market value.
type Summary struct {
	Positions  []Position                 `json:"positions"`
	Totals     Totals                     `json:"totals"`
	Allocation map[string]decimal.Decimal `json:"allocation"`
}

// Summarize values holdings against the given resolved prices.
// Market value = quantity x price; P&L per share = price - cost basis
// (4 decimal places); unrealized P&L = P&L per share x quantity (2 places).
func Summarize(holdings []store.Holding, prices map[string]pricing.ResolvedPrice) Summary {
	summary := Summary{
		Positions:  make([]Position, 0, len(holdings)),
		Allocation: map[string]decimal.Decimal{},
	}

	for _, h := range holdings {
		pos := Position{
			Symbol:    h.Symbol,
			Quantity:  decimal.NewFromFloat(h.Quantity),
			CostBasis: decimal.NewFromFloat(h.CostBasis),
			Currency:  h.Currency,
		}
		if rp, ok := prices[h.Symbol]; ok {
			pos.Priced = true
			pos.LastPrice = decimal.NewFromFloat(rp.Price)
			pos.AsOf = rp.AsOf
			pos.FromCache = rp.FromCache
		}

		pos.MarketValue = pos.Quantity.Mul(pos.LastPrice)
		pos.PnLPerShare = pos.LastPrice.Sub(pos.CostBasis).Round(4)
		pos.UnrealizedPnL = pos.PnLPerShare.Mul(pos.Quantity).Round(2)
		if !pos.Priced {
			// Unknown price: the position carries cost but no value or P&L.
			pos.PnLPerShare = decimal.Zero
			pos.UnrealizedPnL = decimal.Zero
		}

		summary.Totals.MarketValue = summary.Totals.MarketValue.Add(pos.MarketValue)
		summary.Totals.Cost = summary.Totals.Cost.Add(pos.Quantity.Mul(pos.CostBasis))
		summary.Totals.UnrealizedPnL = summary.Totals.UnrealizedPnL.Add(pos.UnrealizedPnL)

		summary.Positions = append(summary.Positions, pos)
	}

	if summary.Totals.MarketValue.IsPositive() {
		for _, pos := range summary.Positions {
			if pos.MarketValue.IsPositive() {
				weight := pos.MarketValue.Div(summary.Totals.MarketValue).Round(4)
				summary.Allocation[pos.Symbol] = summary.Allocation[pos.Symbol].Add(weight)
			}
		}
	}

	return summary
}
