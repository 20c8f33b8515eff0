package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"portfoliotracker/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLatestPrice_Empty(t *testing.T) {
	s := openTestStore(t)

	rec, err := s.LatestPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestLatestPrice_MaxAsOfWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendPrice(ctx, "AAPL", 190.00, "2026-08-28"))
	require.NoError(t, s.AppendPrice(ctx, "AAPL", 197.55, "2026-08-31"))
	require.NoError(t, s.AppendPrice(ctx, "AAPL", 188.10, "2026-08-27"))
	require.NoError(t, s.AppendPrice(ctx, "MSFT", 410.00, "2026-09-01"))

	rec, err := s.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "2026-08-31", rec.AsOf)
	require.Equal(t, 197.55, rec.Price)
}

func TestLatestPrice_SameDayDuplicates_NewestInsertWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendPrice(ctx, "AAPL", 197.00, "2026-08-31"))
	require.NoError(t, s.AppendPrice(ctx, "AAPL", 197.80, "2026-08-31"))

	rec, err := s.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 197.80, rec.Price)
}

func TestRecentPrices(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendPrice(ctx, "AAPL", 197.00, "2026-08-31"))
	require.NoError(t, s.AppendPrice(ctx, "MSFT", 410.00, "2026-09-01"))
	require.NoError(t, s.AppendPrice(ctx, "FTEC", 170.00, "2026-08-28"))

	recs, err := s.RecentPrices(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "MSFT", recs[0].Symbol)
	require.Equal(t, "AAPL", recs[1].Symbol)
}

func TestUpsertHolding_InsertThenUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertHolding(ctx, store.Holding{
		Symbol: " aapl ", Quantity: 10, CostBasis: 5, Currency: "usd",
	}))
	require.NoError(t, s.UpsertHolding(ctx, store.Holding{
		Symbol: "AAPL", Quantity: 12, CostBasis: 5.50, Currency: "USD",
	}))

	holdings, err := s.ListHoldings(ctx)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	require.Equal(t, "AAPL", holdings[0].Symbol)
	require.Equal(t, 12.0, holdings[0].Quantity)
	require.Equal(t, 5.50, holdings[0].CostBasis)
	require.Equal(t, "USD", holdings[0].Currency)
	require.False(t, holdings[0].UpdatedAt.IsZero())
}

func TestUpsertHolding_EmptySymbol(t *testing.T) {
	s := openTestStore(t)

	err := s.UpsertHolding(context.Background(), store.Holding{Symbol: "  ", Quantity: 1})
	require.Error(t, err)
}

func TestDeleteHolding(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertHolding(ctx, store.Holding{Symbol: "AAPL", Quantity: 1, Currency: "USD"}))
	require.NoError(t, s.UpsertHolding(ctx, store.Holding{Symbol: "MSFT", Quantity: 2, Currency: "USD"}))

	require.NoError(t, s.DeleteHolding(ctx, "aapl"))

	holdings, err := s.ListHoldings(ctx)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	require.Equal(t, "MSFT", holdings[0].Symbol)
}

func TestListHoldings_OrderedBySymbol(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, sym := range []string{"MSFT", "AAPL", "FTEC"} {
		require.NoError(t, s.UpsertHolding(ctx, store.Holding{Symbol: sym, Quantity: 1, Currency: "USD"}))
	}

	holdings, err := s.ListHoldings(ctx)
	require.NoError(t, err)
	require.Len(t, holdings, 3)
	require.Equal(t, "AAPL", holdings[0].Symbol)
	require.Equal(t, "FTEC", holdings[1].Symbol)
	require.Equal(t, "MSFT", holdings[2].Symbol)
}
