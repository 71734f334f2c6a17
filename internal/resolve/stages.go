package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Armin-kho/price-snapshot-bot/internal/items"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/sources"
)

// Provider surfaces the chains depend on. The concrete clients live in
// internal/providers and internal/sources.
type (
	CoinGeckoClient interface {
		SimplePrice(ctx context.Context, ids []string) (map[string]prices.Quote, error)
	}
	NobitexClient interface {
		Stats(ctx context.Context, symbols []string, dst string) (map[string]prices.Quote, error)
	}
	GoldAPIClient interface {
		Price(ctx context.Context, symbol string) (prices.Quote, error)
	}
	TGJUClient interface {
		Indicator(ctx context.Context, name string) (prices.Quote, error)
	}
	NavasanClient interface {
		Rates(ctx context.Context, keys []string) (map[string]prices.Quote, error)
	}
	RateSource interface {
		Snapshot(ctx context.Context, force bool) (sources.RateSnapshot, error)
	}
)

const (
	tgjuDollarIndicator = "price_dollar_rl"
	navasanDollarKey    = "usd_sell"
)

// remap calls fetch with the provider-side keys of ids and maps the answer back.
// ids without a provider key are skipped.
func remap(ids []string, key func(id string) string, fetch func(keys []string) (map[string]prices.Quote, error)) (map[string]prices.Quote, error) {
	byKey := map[string]string{}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		k := key(id)
		if k == "" {
			continue
		}
		if _, dup := byKey[k]; !dup {
			keys = append(keys, k)
		}
		byKey[k] = id
	}
	if len(keys) == 0 {
		return nil, errors.New("no provider keys for requested assets")
	}
	got, err := fetch(keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]prices.Quote, len(got))
	for k, q := range got {
		if id, ok := byKey[k]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func itemKey(c items.Category, field func(items.Item) string) func(string) string {
	return func(id string) string {
		it, ok := items.Lookup(c, id)
		if !ok {
			return ""
		}
		return field(it)
	}
}

func coinGeckoStage(cg CoinGeckoClient, c items.Category) Stage {
	key := itemKey(c, func(it items.Item) string { return it.CoinGeckoID })
	return NewStage("coingecko", func(ctx context.Context, ids []string) (map[string]prices.Quote, error) {
		return remap(ids, key, func(keys []string) (map[string]prices.Quote, error) {
			return cg.SimplePrice(ctx, keys)
		})
	})
}

func nobitexStage(nb NobitexClient, dst string) Stage {
	key := itemKey(items.CategoryCrypto, func(it items.Item) string { return it.NobitexSymbol })
	return NewStage("nobitex-"+dst, func(ctx context.Context, ids []string) (map[string]prices.Quote, error) {
		return remap(ids, key, func(keys []string) (map[string]prices.Quote, error) {
			return nb.Stats(ctx, keys, dst)
		})
	})
}

func goldAPIStage(ga GoldAPIClient) Stage {
	return NewStage("gold-api", func(ctx context.Context, ids []string) (map[string]prices.Quote, error) {
		out := map[string]prices.Quote{}
		var errs []error
		for _, id := range ids {
			it, ok := items.Lookup(items.CategoryMetal, id)
			if !ok || it.GoldAPISymbol == "" {
				continue
			}
			q, err := ga.Price(ctx, it.GoldAPISymbol)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out[id] = q
		}
		if len(out) == 0 && len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return out, nil
	})
}

// bonbastSpotStage reads single-valued entries (reference crypto, ounce) from the
// shared rate cache.
func bonbastSpotStage(rates RateSource, pick func(sources.RateSnapshot, items.Item) (sources.SpotRate, bool), c items.Category) Stage {
	return NewStage("bonbast", func(ctx context.Context, ids []string) (map[string]prices.Quote, error) {
		snap, err := rates.Snapshot(ctx, false)
		if err != nil {
			return nil, err
		}
		out := map[string]prices.Quote{}
		for _, id := range ids {
			it, ok := items.Lookup(c, id)
			if !ok {
				continue
			}
			if s, ok := pick(snap, it); ok {
				out[id] = prices.Quote{Price: s.Price, Unit: s.Unit, Source: "bonbast"}
			}
		}
		return out, nil
	})
}

func bonbastCryptoStage(rates RateSource) Stage {
	return bonbastSpotStage(rates, func(s sources.RateSnapshot, it items.Item) (sources.SpotRate, bool) {
		r, ok := s.ReferenceCrypto[it.BonbastKey]
		return r, ok && it.BonbastKey != ""
	}, items.CategoryCrypto)
}

func bonbastOunceStage(rates RateSource) Stage {
	return bonbastSpotStage(rates, func(s sources.RateSnapshot, it items.Item) (sources.SpotRate, bool) {
		r, ok := s.Gold[it.BonbastKey]
		return r, ok && it.BonbastKey != ""
	}, items.CategoryMetal)
}

func tgjuDollarStage(tg TGJUClient) Stage {
	return NewStage("tgju", func(ctx context.Context, ids []string) (map[string]prices.Quote, error) {
		if !contains(ids, prices.AssetUSD) {
			return nil, nil
		}
		q, err := tg.Indicator(ctx, tgjuDollarIndicator)
		if err != nil {
			return nil, err
		}
		return map[string]prices.Quote{prices.AssetUSD: q}, nil
	})
}

func bonbastDollarStage(rates RateSource) Stage {
	return NewStage("bonbast", func(ctx context.Context, ids []string) (map[string]prices.Quote, error) {
		if !contains(ids, prices.AssetUSD) {
			return nil, nil
		}
		snap, err := rates.Snapshot(ctx, false)
		if err != nil {
			return nil, err
		}
		p, ok := snap.Currencies[prices.AssetUSD]
		if !ok {
			return nil, errors.New("usd missing from rate snapshot")
		}
		buy, sell := float64(p.Buy), float64(p.Sell)
		return map[string]prices.Quote{prices.AssetUSD: {
			Price: sell, Buy: &buy, Sell: &sell, Unit: prices.UnitToman, Source: "bonbast",
		}}, nil
	})
}

func navasanDollarStage(nv NavasanClient) Stage {
	return NewStage("navasan", func(ctx context.Context, ids []string) (map[string]prices.Quote, error) {
		return remap(ids, func(id string) string {
			if id == prices.AssetUSD {
				return navasanDollarKey
			}
			return ""
		}, func(keys []string) (map[string]prices.Quote, error) {
			return nv.Rates(ctx, keys)
		})
	})
}

// derivedLocalStage prices crypto in toman as USD price times the dollar rate. Only
// live inputs are used; the 24h change is left unavailable. Both inputs resolve
// concurrently, each within its own chain budget.
func derivedLocalStage(usd, fx *Chain) Stage {
	return NewBudgetedStage("derived", max(usd.Budget(), fx.Budget()), func(ctx context.Context, ids []string) (map[string]prices.Quote, error) {
		var rate, base Result
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			if rate, err = fx.Resolve(gctx, []string{prices.AssetUSD}); err != nil {
				return fmt.Errorf("dollar rate: %w", err)
			}
			if !rate.Live() {
				return fmt.Errorf("dollar rate: only %s values", rate.Source)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if base, err = usd.Resolve(gctx, ids); err != nil {
				return fmt.Errorf("usd prices: %w", err)
			}
			if !base.Live() {
				return fmt.Errorf("usd prices: only %s values", base.Source)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		dollar := decimal.NewFromFloat(rate.Quotes[prices.AssetUSD].Price)
		out := make(map[string]prices.Quote, len(base.Quotes))
		for id, q := range base.Quotes {
			p, _ := decimal.NewFromFloat(q.Price).Mul(dollar).Round(0).Float64()
			out[id] = prices.Quote{Price: p, Unit: prices.UnitToman, Source: "derived"}
		}
		return out, nil
	})
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
