package providers

import (
	"context"
	"fmt"

	"github.com/Armin-kho/price-snapshot-bot/internal/httpx"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/utils"
)

const tgjuBaseURL = "https://api.accessban.com/v1"

// TGJU reads market indicators through the accessban mirror of the tgju API.
// Prices come back in rial.
type TGJU struct {
	client
}

func NewTGJU(opts ...Option) *TGJU {
	return &TGJU{client: newClient("tgju", tgjuBaseURL, opts)}
}

type tgjuIndicator struct {
	Data *struct {
		P  any `json:"p"`
		DP any `json:"dp"`
		DT any `json:"dt"`
	} `json:"data"`
}

// Indicator returns the current value of a summary-table indicator such as price_dollar_rl.
func (t *TGJU) Indicator(ctx context.Context, name string) (prices.Quote, error) {
	u := fmt.Sprintf("%s/market/indicator/summary-table-data/%s", t.baseURL, name)
	var data tgjuIndicator
	if err := httpx.GetJSON(ctx, t.httpClient, t.name, u, t.header, &data); err != nil {
		return prices.Quote{}, err
	}
	if data.Data == nil {
		return prices.Quote{}, prices.NewUpstreamError(t.name, name, 0, fmt.Errorf("%w: missing data", prices.ErrParse))
	}
	p, ok := utils.ToFloat(data.Data.P)
	if !ok || p <= 0 {
		return prices.Quote{}, prices.NewUpstreamError(t.name, name, 0, fmt.Errorf("%w: bad price", prices.ErrParse))
	}
	q := prices.Quote{Price: p, Unit: prices.UnitRial, Source: t.name}
	// dp is the day's percent change; dt says whether it went up or down.
	if dp, ok := utils.ToFloat(data.Data.DP); ok {
		if dt, _ := data.Data.DT.(string); dt == "low" && dp > 0 {
			dp = -dp
		}
		q.Change24h = prices.Float(dp)
	}
	return q, nil
}
