package quote

import (
	"net/http"

	"github.com/rs/zerolog"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=quote_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultBaseURL = "https://www.alphavantage.co/query"

// Client fetches quotes from the Alpha Vantage query API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// apiKey authenticates every request; empty means fetching is disabled.
	apiKey string
	// httpClient is the HTTP client used for all requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	log    zerolog.Logger
}

// Option is a configuration option for the Alpha Vantage client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new Alpha Vantage client. An empty apiKey is allowed;
// FetchQuote will then fail with ErrNoAPIKey without touching the network.
func NewClient(apiKey string, options ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		log:        zerolog.Nop(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// HasKey reports whether an API key is configured.
func (c *Client) HasKey() bool { return c.apiKey != "" }
