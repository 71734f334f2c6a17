package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Armin-kho/price-snapshot-bot/internal/httpx"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
)

const (
	bonbastBaseURL      = "https://www.bonbast.com"
	bonbastFetchTimeout = 10 * time.Second
)

// BonbastClient replays the site's own data request with a captured Session.
type BonbastClient struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient httpx.HTTPClient
}

type BonbastOption func(*BonbastClient)

func WithHTTPClient(c httpx.HTTPClient) BonbastOption {
	return func(b *BonbastClient) {
		if c != nil {
			b.httpClient = c
		}
	}
}

func WithBaseURL(u string) BonbastOption {
	return func(b *BonbastClient) {
		if u != "" {
			b.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithUserAgent(ua string) BonbastOption {
	return func(b *BonbastClient) {
		if ua != "" {
			b.userAgent = ua
		}
	}
}

// WithFetchTimeout bounds one data request.
func WithFetchTimeout(d time.Duration) BonbastOption {
	return func(b *BonbastClient) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func NewBonbastClient(opts ...BonbastOption) *BonbastClient {
	b := &BonbastClient{
		baseURL:    bonbastBaseURL,
		userAgent:  httpx.BrowserUserAgent,
		timeout:    bonbastFetchTimeout,
		httpClient: httpx.New(bonbastFetchTimeout),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fetch posts the session token to /json and returns the decoded payload.
// Origin and referer always name the public site, whatever baseURL is.
func (b *BonbastClient) Fetch(ctx context.Context, s Session) (RawRates, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	form := url.Values{"param": {s.Token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/json", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, prices.NewUpstreamError("bonbast", "build request", 0, err)
	}
	b.setHeaders(req, s)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, prices.NewUpstreamError("bonbast", "fetch", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, prices.NewUpstreamError("bonbast", "fetch", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, 4<<20))
	dec.UseNumber()
	var raw RawRates
	if err := dec.Decode(&raw); err != nil {
		return nil, prices.NewUpstreamError("bonbast", "decode", resp.StatusCode, fmt.Errorf("%w: %v", prices.ErrParse, err))
	}
	if raw == nil {
		return nil, prices.NewUpstreamError("bonbast", "decode", resp.StatusCode, fmt.Errorf("%w: null body", prices.ErrParse))
	}
	return raw, nil
}

func (b *BonbastClient) setHeaders(req *http.Request, s Session) {
	h := req.Header
	h.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	h.Set("Origin", bonbastBaseURL)
	h.Set("Referer", bonbastBaseURL+"/")
	h.Set("Priority", "u=1, i")
	h.Set("Sec-Ch-Ua", `"Chromium";v="142", "Google Chrome";v="142", "Not_A Brand";v="99"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("User-Agent", b.userAgent)
	h.Set("X-Requested-With", "XMLHttpRequest")
	if c := cookieHeader(s.Cookies); c != "" {
		h.Set("Cookie", c)
	}
}

// cookieHeader serialises cookies as one header value, in name order.
func cookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}
