package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Armin-kho/price-snapshot-bot/internal/httpx"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/utils"
)

const navasanBaseURL = "https://www.navasan.net"

// Navasan reads the JSON endpoints navasan.net's own pages poll. Unofficial; no key
// needed. Values are in toman.
type Navasan struct {
	client
	now func() time.Time
}

func NewNavasan(opts ...Option) *Navasan {
	return &Navasan{client: newClient("navasan", navasanBaseURL, opts), now: time.Now}
}

type navasanItem struct {
	Value   any `json:"value"`
	Change  any `json:"change"`
	Percent any `json:"percent"`
}

// Rates returns quotes for the requested navasan keys (usd_sell, eur_sell, ...).
// The endpoints are tried one after another and merged; it fails only when none answered.
func (n *Navasan) Rates(ctx context.Context, keys []string) (map[string]prices.Quote, error) {
	// Cache-busting param similar to their JS (time/10)
	cb := strconv.FormatInt(n.now().Unix()/10, 10)
	endpoints := []string{
		n.baseURL + "/last_currencies.php?_=" + cb,
		n.baseURL + "/gold_rates.php?_=" + cb,
	}

	merged := map[string]navasanItem{}
	var errs []error
	for _, ep := range endpoints {
		var part map[string]navasanItem
		if err := httpx.GetJSON(ctx, n.httpClient, n.name, ep, n.header, &part); err != nil {
			errs = append(errs, err)
			continue
		}
		for k, v := range part {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("navasan: no data from endpoints: %w", errors.Join(errs...))
	}

	out := make(map[string]prices.Quote, len(keys))
	for _, k := range keys {
		it, ok := merged[k]
		if !ok {
			continue
		}
		v, ok := utils.ToFloat(it.Value)
		if !ok || v <= 0 {
			continue
		}
		q := prices.Quote{Price: v, Unit: prices.UnitToman, Source: n.name}
		if pct, ok := utils.ToFloat(it.Percent); ok {
			q.Change24h = prices.Float(pct)
		}
		out[k] = q
	}
	return out, nil
}
