package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PriceRecord is one immutable row of the daily price ledger.
type PriceRecord struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	// AsOf is the trading day the price reflects, ISO-8601.
	AsOf string `json:"asof"`
}

// LatestPrice returns the record with the maximum as-of date for symbol, or
// nil when no records exist. Duplicate same-day rows are broken by insertion
// order, most recent first.
func (s *Store) LatestPrice(ctx context.Context, symbol string) (*PriceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT symbol, price, asof FROM prices_daily
		 WHERE symbol = ? ORDER BY asof DESC, id DESC LIMIT 1`, symbol)

	var rec PriceRecord
	if err := row.Scan(&rec.Symbol, &rec.Price, &rec.AsOf); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest price for %s: %w", symbol, err)
	}
	return &rec, nil
}

// AppendPrice writes a new ledger row. Rows are never updated or deleted;
// repeated fetches on the same day simply add duplicates.
func (s *Store) AppendPrice(ctx context.Context, symbol string, price float64, asof string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prices_daily (symbol, price, asof) VALUES (?, ?, ?)`,
		symbol, price, asof)
	if err != nil {
		return fmt.Errorf("append price for %s: %w", symbol, err)
	}
	return nil
}

// RecentPrices lists the newest ledger rows across all symbols.
func (s *Store) RecentPrices(ctx context.Context, limit int) ([]PriceRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, price, asof FROM prices_daily
		 ORDER BY asof DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent prices: %w", err)
	}
	defer rows.Close()

	var out []PriceRecord
	for rows.Next() {
		var rec PriceRecord
		if err := rows.Scan(&rec.Symbol, &rec.Price, &rec.AsOf); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
