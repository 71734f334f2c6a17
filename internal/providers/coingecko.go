package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Armin-kho/price-snapshot-bot/internal/httpx"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/utils"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko docs: https://docs.coingecko.com/
// Endpoint used: /simple/price?ids=<ids>&vs_currencies=usd&include_24hr_change=true
type CoinGecko struct {
	client
}

// NewCoinGecko creates a CoinGecko client. apiKey is optional.
func NewCoinGecko(apiKey string, opts ...Option) *CoinGecko {
	c := &CoinGecko{client: newClient("coingecko", coinGeckoBaseURL, opts)}
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		c.header.Set("x-cg-pro-api-key", apiKey)
	}
	return c
}

// SimplePrice returns USD quotes keyed by CoinGecko id. Ids missing from the
// response, or with an unparseable price, are left out.
func (c *CoinGecko) SimplePrice(ctx context.Context, ids []string) (map[string]prices.Quote, error) {
	if len(ids) == 0 {
		return map[string]prices.Quote{}, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_7d_change", "true")

	var data map[string]map[string]any
	u := fmt.Sprintf("%s/simple/price?%s", c.baseURL, q.Encode())
	if err := httpx.GetJSON(ctx, c.httpClient, c.name, u, c.header, &data); err != nil {
		return nil, err
	}

	out := make(map[string]prices.Quote, len(ids))
	for _, id := range ids {
		m, ok := data[id]
		if !ok {
			continue
		}
		p, ok := utils.ToFloat(m["usd"])
		if !ok || p <= 0 {
			continue
		}
		quote := prices.Quote{Price: p, Unit: prices.UnitUSD, Source: c.name}
		if ch, ok := utils.ToFloat(m["usd_24h_change"]); ok {
			quote.Change24h = prices.Float(ch)
		}
		if ch, ok := utils.ToFloat(m["usd_7d_change"]); ok {
			quote.Change7d = prices.Float(ch)
		}
		out[id] = quote
	}
	return out, nil
}
