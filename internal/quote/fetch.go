package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Quote is a resolved price for a single symbol.
type Quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	// AsOf is the trading day the price reflects, ISO-8601.
	AsOf string `json:"asof"`
}

// envelope is the decoded provider response. Alpha Vantage reports
// diagnostics as top-level fields in an otherwise-200 body, so all three
// must be checked before the data fields are trusted.
type envelope struct {
	Information  string              `json:"Information"`
	Note         string              `json:"Note"`
	ErrorMessage string              `json:"Error Message"`
	GlobalQuote  *globalQuote        `json:"Global Quote"`
	Series       map[string]dailyBar `json:"Time Series (Daily)"`
}

type globalQuote struct {
	Price               string `json:"05. price"`
	LatestTradingDay    string `json:"07. latest trading day"`
	LatestTradingDayAlt string `json:"10. latest trading day"`
}

type dailyBar struct {
	Close         string `json:"4. close"`
	AdjustedClose string `json:"5. adjusted close"`
}

// tier is one upstream query shape in the fallback cascade.
type tier struct {
	function string
	fetch    func(ctx context.Context, symbol string) (Quote, error)
}

// FetchQuote resolves the latest price for symbol, cascading across three
// query shapes: GLOBAL_QUOTE (cheapest), then TIME_SERIES_DAILY, then
// TIME_SERIES_DAILY_ADJUSTED (may need a paid plan). The first tier that
// yields a usable price wins; failures on earlier tiers only advance the
// cascade, the last tier's failure is returned to the caller.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	if c.apiKey == "" {
		return Quote{}, ErrNoAPIKey
	}

	tiers := []tier{
		{function: "GLOBAL_QUOTE", fetch: c.globalQuote},
		{function: "TIME_SERIES_DAILY", fetch: c.dailySeries},
		{function: "TIME_SERIES_DAILY_ADJUSTED", fetch: c.dailySeriesAdjusted},
	}

	var lastErr error
	for i, t := range tiers {
		q, err := t.fetch(ctx, symbol)
		if err == nil {
			return q, nil
		}
		lastErr = err
		if i < len(tiers)-1 {
			c.log.Debug().Str("symbol", symbol).Str("function", t.function).Err(err).
				Msg("quote tier failed, trying next")
		}
	}
	return Quote{}, lastErr
}

func (c *Client) globalQuote(ctx context.Context, symbol string) (Quote, error) {
	env, err := c.query(ctx, "GLOBAL_QUOTE", symbol)
	if err != nil {
		return Quote{}, err
	}
	g := env.GlobalQuote
	if g == nil || g.Price == "" {
		return Quote{}, ErrNoData
	}
	price, err := strconv.ParseFloat(g.Price, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("parsing price %q: %w", g.Price, err)
	}
	asof := g.LatestTradingDay
	if asof == "" {
		asof = g.LatestTradingDayAlt
	}
	return Quote{Symbol: symbol, Price: price, AsOf: asof}, nil
}

func (c *Client) dailySeries(ctx context.Context, symbol string) (Quote, error) {
	env, err := c.query(ctx, "TIME_SERIES_DAILY", symbol)
	if err != nil {
		return Quote{}, err
	}
	last, bar, ok := latestBar(env.Series)
	if !ok {
		return Quote{}, ErrNoData
	}
	price, err := strconv.ParseFloat(bar.Close, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("parsing close %q: %w", bar.Close, err)
	}
	return Quote{Symbol: symbol, Price: price, AsOf: last}, nil
}

func (c *Client) dailySeriesAdjusted(ctx context.Context, symbol string) (Quote, error) {
	env, err := c.query(ctx, "TIME_SERIES_DAILY_ADJUSTED", symbol)
	if err != nil {
		return Quote{}, err
	}
	last, bar, ok := latestBar(env.Series)
	if !ok {
		return Quote{}, ErrNoData
	}
	raw := bar.AdjustedClose
	if raw == "" {
		raw = bar.Close
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("parsing adjusted close %q: %w", raw, err)
	}
	return Quote{Symbol: symbol, Price: price, AsOf: last}, nil
}

// query performs one API call and decodes the body, surfacing the provider's
// diagnostic fields as typed errors before any data is returned.
func (c *Client) query(ctx context.Context, function, symbol string) (*envelope, error) {
	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)

	addr := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &TransportError{Status: res.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	switch {
	case env.Information != "":
		return nil, &EntitlementError{Message: env.Information}
	case env.Note != "":
		return nil, &RateLimitError{Message: env.Note}
	case env.ErrorMessage != "":
		return nil, &UpstreamError{Message: env.ErrorMessage}
	}
	return &env, nil
}

// latestBar picks the entry with the maximum date key. Date keys are
// ISO-8601, so lexicographic order is chronological order.
func latestBar(series map[string]dailyBar) (string, dailyBar, bool) {
	var last string
	for d := range series {
		if d > last {
			last = d
		}
	}
	if last == "" {
		return "", dailyBar{}, false
	}
	return last, series[last], true
}
