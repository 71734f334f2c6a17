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

const nobitexBaseURL = "https://api.nobitex.ir"

const (
	NobitexRial = "rls"
	NobitexUSDT = "usdt"
)

// Nobitex reads market statistics from the Nobitex exchange. Rial markets are
// quoted in rial, USDT markets are treated as USD.
type Nobitex struct {
	client
}

func NewNobitex(opts ...Option) *Nobitex {
	return &Nobitex{client: newClient("nobitex", nobitexBaseURL, opts)}
}

type nobitexStats struct {
	Status string `json:"status"`
	Stats  map[string]struct {
		IsClosed  bool `json:"isClosed"`
		Latest    any  `json:"latest"`
		DayChange any  `json:"dayChange"`
	} `json:"stats"`
}

// Stats returns quotes keyed by source symbol (btc, eth, ...) against dst.
func (n *Nobitex) Stats(ctx context.Context, symbols []string, dst string) (map[string]prices.Quote, error) {
	if len(symbols) == 0 {
		return map[string]prices.Quote{}, nil
	}
	q := url.Values{}
	q.Set("srcCurrency", strings.Join(symbols, ","))
	q.Set("dstCurrency", dst)

	var data nobitexStats
	u := fmt.Sprintf("%s/market/stats?%s", n.baseURL, q.Encode())
	if err := httpx.GetJSON(ctx, n.httpClient, n.name, u, n.header, &data); err != nil {
		return nil, err
	}
	if data.Status != "ok" {
		return nil, prices.NewUpstreamError(n.name, "stats", 0, fmt.Errorf("%w: status %q", prices.ErrParse, data.Status))
	}

	unit := prices.UnitRial
	if dst == NobitexUSDT {
		unit = prices.UnitUSD
	}
	out := make(map[string]prices.Quote, len(symbols))
	for _, sym := range symbols {
		st, ok := data.Stats[sym+"-"+dst]
		if !ok || st.IsClosed {
			continue
		}
		p, ok := utils.ToFloat(st.Latest)
		if !ok || p <= 0 {
			continue
		}
		quote := prices.Quote{Price: p, Unit: unit, Source: n.name}
		if ch, ok := utils.ToFloat(st.DayChange); ok {
			quote.Change24h = prices.Float(ch)
		}
		out[sym] = quote
	}
	return out, nil
}
