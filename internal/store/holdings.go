package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Holding is one position in the portfolio, keyed by symbol.
type Holding struct {
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	CostBasis float64   `json:"cost_basis"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeSymbol upper-cases and trims a symbol for use as a key.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ListHoldings returns all holdings ordered by symbol.
func (s *Store) ListHoldings(ctx context.Context) ([]Holding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, quantity, cost_basis, currency, updated_at
		 FROM holdings ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		var h Holding
		var updated string
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.CostBasis, &h.Currency, &updated); err != nil {
			return nil, fmt.Errorf("scan holding row: %w", err)
		}
		h.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpsertHolding inserts or replaces a holding keyed on its normalized symbol.
func (s *Store) UpsertHolding(ctx context.Context, h Holding) error {
	symbol := NormalizeSymbol(h.Symbol)
	if symbol == "" {
		return fmt.Errorf("upsert holding: empty symbol")
	}
	currency := strings.ToUpper(strings.TrimSpace(h.Currency))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO holdings (symbol, quantity, cost_basis, currency, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			cost_basis = excluded.cost_basis,
			currency = excluded.currency,
			updated_at = excluded.updated_at`,
		symbol, h.Quantity, h.CostBasis, currency, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert holding %s: %w", symbol, err)
	}
	return nil
}

// DeleteHolding removes a holding by symbol.
func (s *Store) DeleteHolding(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM holdings WHERE symbol = ?`, NormalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("delete holding %s: %w", symbol, err)
	}
	return nil
}
