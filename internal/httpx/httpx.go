package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
)

// BrowserUserAgent is the Chrome user agent presented by the capture browser and by
// every request that has to look like it came from the same client.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=providers_test -destination=../providers/mock_http_client_test.go -source=httpx.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns an http.Client with sane defaults for short provider calls.
func New(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// GetJSON performs a GET and decodes a JSON body into v. Every failure is returned
// as *prices.UpstreamError tagged with provider.
func GetJSON(ctx context.Context, client HTTPClient, provider, url string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return prices.NewUpstreamError(provider, "build request", 0, err)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", BrowserUserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return prices.NewUpstreamError(provider, "get", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return prices.NewUpstreamError(provider, "get", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(b))))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(v); err != nil {
		return prices.NewUpstreamError(provider, "decode", resp.StatusCode, fmt.Errorf("%w: %v", prices.ErrParse, err))
	}
	return nil
}
