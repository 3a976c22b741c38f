package mint

import "net/http"

// Option configures an EngineClient.
type Option func(*EngineClient)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *EngineClient) {
		if c != nil {
			e.http = c
		}
	}
}

// WithPath sets the send-transaction path appended to the base URL.
func WithPath(path string) Option {
	return func(e *EngineClient) {
		if path != "" {
			e.path = path
		}
	}
}

// WithAccessToken sets the bearer token.
func WithAccessToken(token string) Option {
	return func(e *EngineClient) {
		e.token = token
	}
}

// WithRateLimit caps requests per second. Non-positive values disable it.
func WithRateLimit(perSec float64) Option {
	return func(e *EngineClient) {
		e.ratePerSec = perSec
	}
}
