package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"portfoliotracker/internal/config"
	"portfoliotracker/internal/httpx"
	"portfoliotracker/internal/pricing"
	"portfoliotracker/internal/quote"
	"portfoliotracker/internal/store"
)

func main() {
	var symbolsCSV string
	var force bool
	var timeout int
	var configPath string

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", ""), "comma-separated symbols (default: all holdings)")
	flag.BoolVar(&force, "force", false, "bypass today's cache and fetch fresh prices")
	flag.IntVar(&timeout, "timeout", 0, "request timeout seconds (overrides config)")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.Parse()

	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if timeout > 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	st, err := store.Open(cfg.Store.SQLitePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("store")
	}
	defer st.Close()

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	client := quote.NewClient(cfg.AlphaVantage.APIKey,
		quote.WithBaseURL(cfg.AlphaVantage.BaseURL),
		quote.WithHTTPClient(httpClient),
		quote.WithLogger(log),
	)
	resolver := pricing.NewResolver(st, client, log)
	refresher := pricing.NewRefresher(resolver, st, log,
		pricing.WithCooldown(time.Duration(cfg.AlphaVantage.CooldownSec)*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var symbols []string
	if symbolsCSV != "" {
		for _, s := range splitCSV(symbolsCSV) {
			symbols = append(symbols, store.NormalizeSymbol(s))
		}
	} else {
		holdings, err := st.ListHoldings(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("list holdings")
		}
		for _, h := range holdings {
			symbols = append(symbols, h.Symbol)
		}
	}
	if len(symbols) == 0 {
		log.Fatal().Msg("nothing to refresh: no symbols given and no holdings stored")
	}

	res, err := refresher.RefreshAll(ctx, symbols, force)
	if err != nil {
		log.Warn().Err(err).Msg("refresh interrupted; printing partial result")
	}

	out := struct {
		pricing.Result
		Diagnostic string `json:"diagnostic,omitempty"`
	}{Result: res, Diagnostic: res.Diagnose(client.HasKey())}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("encode result")
	}

	if res.Empty() {
		os.Exit(1)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
