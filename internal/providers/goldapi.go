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

const goldAPIBaseURL = "https://api.gold-api.com"

// GoldAPI reads metal spot prices from gold-api.com (/price/XAU, /price/XAG).
type GoldAPI struct {
	client
}

func NewGoldAPI(opts ...Option) *GoldAPI {
	return &GoldAPI{client: newClient("gold-api", goldAPIBaseURL, opts)}
}

type goldAPIResponse struct {
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Price     any    `json:"price"`
	Change24h any    `json:"change_24h"`
	Change7d  any    `json:"change_7d"`
}

// Price returns the USD per troy ounce spot price for symbol.
func (g *GoldAPI) Price(ctx context.Context, symbol string) (prices.Quote, error) {
	u := fmt.Sprintf("%s/price/%s", g.baseURL, url.PathEscape(strings.ToUpper(symbol)))
	var data goldAPIResponse
	if err := httpx.GetJSON(ctx, g.httpClient, g.name, u, g.header, &data); err != nil {
		return prices.Quote{}, err
	}
	p, ok := utils.ToFloat(data.Price)
	if !ok || p <= 0 {
		return prices.Quote{}, prices.NewUpstreamError(g.name, "price "+symbol, 0, prices.ErrParse)
	}
	q := prices.Quote{Price: p, Unit: prices.UnitUSD, Source: g.name}
	if ch, ok := utils.ToFloat(data.Change24h); ok {
		q.Change24h = prices.Float(ch)
	}
	if ch, ok := utils.ToFloat(data.Change7d); ok {
		q.Change7d = prices.Float(ch)
	}
	return q, nil
}
