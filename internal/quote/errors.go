package quote

import (
	"errors"
	"fmt"
)

// ErrNoAPIKey is returned before any network call when no API key is configured.
var ErrNoAPIKey = errors.New("alpha vantage api key not configured")

// ErrNoData is returned when no endpoint produced a usable price.
var ErrNoData = errors.New("no time series returned by alpha vantage")

// TransportError reports a network failure or a non-success HTTP status.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport: unexpected status %d", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EntitlementError reports the provider's "Information" diagnostic, sent when
// an endpoint is restricted to a paid plan.
type EntitlementError struct {
	Message string
}

func (e *EntitlementError) Error() string { return "api info: " + e.Message }

// RateLimitError reports the provider's "Note" diagnostic, sent when the
// request quota is exceeded (5/min, 500/day on the free plan).
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string { return "rate limit hit: " + e.Message }

// UpstreamError reports the provider's generic "Error Message" diagnostic.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string { return "api error: " + e.Message }
