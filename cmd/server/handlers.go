package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"portfoliotracker/internal/pricing"
	"portfoliotracker/internal/store"
	"portfoliotracker/internal/valuation"
)

type holdingsStore interface {
	ListHoldings(ctx context.Context) ([]store.Holding, error)
	UpsertHolding(ctx context.Context, h store.Holding) error
	DeleteHolding(ctx context.Context, symbol string) error
	LatestPrice(ctx context.Context, symbol string) (*store.PriceRecord, error)
	RecentPrices(ctx context.Context, limit int) ([]store.PriceRecord, error)
}

type batchRefresher interface {
	RefreshAll(ctx context.Context, symbols []string, force bool) (pricing.Result, error)
}

type api struct {
	store         holdingsStore
	refresher     batchRefresher
	keyConfigured bool
	baseCurrency  string
	log           zerolog.Logger
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/holdings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			a.handleListHoldings(w, r)
		case http.MethodPost:
			a.handleUpsertHolding(w, r)
		case http.MethodDelete:
			a.handleDeleteHolding(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/prices", a.handleRecentPrices)
	mux.HandleFunc("/api/refresh", a.handleRefresh)
	mux.HandleFunc("/api/overview", a.handleOverview)
	return mux
}

type holdingsResponse struct {
	Holdings []store.Holding `json:"holdings"`
}

func (a *api) handleListHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := a.store.ListHoldings(r.Context())
	if err != nil {
		a.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holdingsResponse{Holdings: holdings})
}

type upsertRequest struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	CostBasis float64 `json:"cost_basis"`
	Currency  string  `json:"currency"`
}

func (a *api) handleUpsertHolding(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	if req.Quantity < 0 || req.CostBasis < 0 {
		http.Error(w, "quantity and cost_basis must be non-negative", http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = a.baseCurrency
	}

	h := store.Holding{
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
		CostBasis: req.CostBasis,
		Currency:  req.Currency,
	}
	if err := a.store.UpsertHolding(r.Context(), h); err != nil {
		a.serverError(w, err)
		return
	}
	h.Symbol = store.NormalizeSymbol(h.Symbol)
	writeJSON(w, http.StatusOK, map[string]any{"holding": h})
}

func (a *api) handleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if strings.TrimSpace(symbol) == "" {
		http.Error(w, "missing symbol query param", http.StatusBadRequest)
		return
	}
	if err := a.store.DeleteHolding(r.Context(), symbol); err != nil {
		a.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pricesResponse struct {
	Prices []store.PriceRecord `json:"prices"`
}

func (a *api) handleRecentPrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 500
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	prices, err := a.store.RecentPrices(r.Context(), limit)
	if err != nil {
		a.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pricesResponse{Prices: prices})
}

type refreshRequest struct {
	Force bool `json:"force"`
}

type refreshResponse struct {
	pricing.Result
	// Diagnostic explains an empty batch (missing key vs exhausted
	// attempts); omitted otherwise.
	Diagnostic string `json:"diagnostic,omitempty"`
}

func (a *api) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	holdings, err := a.store.ListHoldings(r.Context())
	if err != nil {
		a.serverError(w, err)
		return
	}
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}

	res, err := a.refresher.RefreshAll(r.Context(), symbols, req.Force)
	if err != nil {
		// Canceled mid-batch; the partial result is still worth logging.
		a.log.Warn().Err(err).Int("resolved", len(res.Prices)).Msg("refresh interrupted")
		http.Error(w, "refresh interrupted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Result:     res,
		Diagnostic: res.Diagnose(a.keyConfigured),
	})
}

type overviewResponse struct {
	valuation.Summary
	BaseCurrency string `json:"base_currency"`
}

// handleOverview values holdings against the freshest cached prices; it
// never calls upstream. POST /api/refresh first for live prices.
func (a *api) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	holdings, err := a.store.ListHoldings(r.Context())
	if err != nil {
		a.serverError(w, err)
		return
	}

	prices := make(map[string]pricing.ResolvedPrice, len(holdings))
	for _, h := range holdings {
		rec, err := a.store.LatestPrice(r.Context(), h.Symbol)
		if err != nil {
			a.serverError(w, err)
			return
		}
		if rec != nil {
			prices[h.Symbol] = pricing.ResolvedPrice{
				Symbol:    rec.Symbol,
				Price:     rec.Price,
				AsOf:      rec.AsOf,
				FromCache: true,
			}
		}
	}

	writeJSON(w, http.StatusOK, overviewResponse{
		Summary:      valuation.Summarize(holdings, prices),
		BaseCurrency: a.baseCurrency,
	})
}

func (a *api) serverError(w http.ResponseWriter, err error) {
	a.log.Error().Err(err).Msg("request failed")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
