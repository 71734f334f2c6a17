// Package providers holds the plain HTTP price sources used by the fallback chains.
// Every client returns prices.Quote values in the provider's native unit; unit
// conversion happens in the chain so it is applied the same way for every stage.
package providers

import (
	"net/http"
	"strings"

	"github.com/Armin-kho/price-snapshot-bot/internal/httpx"
)

type client struct {
	// name tags errors and quotes.
	name string
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient httpx.HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option shared by all provider clients.
type Option func(*client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient httpx.HTTPClient) Option {
	return func(c *client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

func newClient(name, baseURL string, opts []Option) client {
	c := client{
		name:       name,
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Name returns the provider name used in logs, metrics and Quote.Source.
func (c *client) Name() string { return c.name }
