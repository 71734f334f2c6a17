package sources

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Armin-kho/price-snapshot-bot/internal/httpx"
	"github.com/Armin-kho/price-snapshot-bot/internal/metrics"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
)

const (
	defaultCaptureTimeout = 70 * time.Second
	capturePollInterval   = time.Second
)

// BrowserCapturer drives a headless Chrome to the rate site and records the token
// the page's own script posts to /json, plus the cookies set along the way.
type BrowserCapturer struct {
	url       string
	userAgent string
	execPath  string
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type CaptureOption func(*BrowserCapturer)

func WithCaptureURL(u string) CaptureOption {
	return func(c *BrowserCapturer) {
		if u != "" {
			c.url = u
		}
	}
}

func WithCaptureUserAgent(ua string) CaptureOption {
	return func(c *BrowserCapturer) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithChromePath points the allocator at a specific browser binary.
func WithChromePath(path string) CaptureOption {
	return func(c *BrowserCapturer) { c.execPath = path }
}

func WithCaptureTimeout(d time.Duration) CaptureOption {
	return func(c *BrowserCapturer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithCaptureLogger(l *slog.Logger) CaptureOption {
	return func(c *BrowserCapturer) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithCaptureMetrics(m *metrics.Metrics) CaptureOption {
	return func(c *BrowserCapturer) { c.metrics = m }
}

func NewBrowserCapturer(opts ...CaptureOption) *BrowserCapturer {
	c := &BrowserCapturer{
		url:       bonbastBaseURL + "/",
		userAgent: httpx.BrowserUserAgent,
		timeout:   defaultCaptureTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *BrowserCapturer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(c.userAgent),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1366, 768),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}
	return opts
}

// Capture runs one browser session. The browser is torn down before it returns,
// whatever the outcome.
func (c *BrowserCapturer) Capture(ctx context.Context) (Session, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveCapture(time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var box tokenBox
	chromedp.ListenTarget(browserCtx, func(ev any) {
		e, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || e.Request == nil {
			return
		}
		if token, ok := tokenFromRequest(e.Request); ok {
			box.set(token)
		}
	})

	if err := chromedp.Run(browserCtx); err != nil {
		return Session{}, c.fail(ctx, "start", err)
	}

	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errorText, err := page.Navigate(c.url).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return errors.New(errorText)
			}
			return nil
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return Session{}, c.fail(ctx, "navigate", err)
	}
	c.logger.Debug("capture page loaded", "url", c.url, "elapsed", time.Since(start))

	ticker := time.NewTicker(capturePollInterval)
	defer ticker.Stop()
	for {
		if token, ok := box.get(); ok {
			cookies, err := readCookies(browserCtx)
			if err != nil {
				return Session{}, c.fail(ctx, "cookies", err)
			}
			c.logger.Info("token captured", "cookies", len(cookies), "elapsed", time.Since(start))
			return Session{Token: token, Cookies: cookies, CapturedAt: time.Now()}, nil
		}
		select {
		case <-ctx.Done():
			return Session{}, c.fail(ctx, "wait", ctx.Err())
		case <-browserCtx.Done():
			return Session{}, c.fail(ctx, "browser", errors.New("browser exited"))
		case <-ticker.C:
		}
	}
}

// fail maps a capture failure onto the error taxonomy: the window running out is
// ErrCaptureTimeout, a caller cancellation is returned as is, anything else is a
// CaptureError.
func (c *BrowserCapturer) fail(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		c.logger.Warn("capture timed out", "op", op, "timeout", c.timeout)
		return fmt.Errorf("%w after %s", prices.ErrCaptureTimeout, c.timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	default:
		c.logger.Error("capture failed", "op", op, "err", err)
		return &prices.CaptureError{Op: op, Err: err}
	}
}

func readCookies(ctx context.Context) (map[string]string, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(cookies))
	for _, ck := range cookies {
		out[ck.Name] = ck.Value
	}
	return out, nil
}

// tokenFromRequest accepts a POST to a /json URL whose form body carries param.
func tokenFromRequest(req *network.Request) (string, bool) {
	if req.Method != "POST" || !strings.Contains(req.URL, "/json") {
		return "", false
	}
	var body strings.Builder
	for _, entry := range req.PostDataEntries {
		if entry != nil {
			body.WriteString(decodePostData(entry.Bytes))
		}
	}
	return parseTokenBody(body.String())
}

// Post data entries arrive base64 encoded; older browsers sent them raw.
func decodePostData(s string) string {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && utf8.Valid(b) {
		return string(b)
	}
	return s
}

// parseTokenBody extracts the token from a form body such as "param=abc".
func parseTokenBody(body string) (string, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", false
	}
	values, err := url.ParseQuery(body)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(values.Get("param"))
	return token, token != ""
}

type tokenBox struct {
	mu    sync.Mutex
	token string
}

// set keeps the first token seen.
func (b *tokenBox) set(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.token == "" {
		b.token = token
	}
}

func (b *tokenBox) get() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token, b.token != ""
}
