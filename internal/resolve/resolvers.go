package resolve

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Armin-kho/price-snapshot-bot/internal/items"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/providers"
	"github.com/Armin-kho/price-snapshot-bot/internal/sources"
)

var (
	_ CoinGeckoClient = (*providers.CoinGecko)(nil)
	_ NobitexClient   = (*providers.Nobitex)(nil)
	_ GoldAPIClient   = (*providers.GoldAPI)(nil)
	_ TGJUClient      = (*providers.TGJU)(nil)
	_ NavasanClient   = (*providers.Navasan)(nil)
	_ RateSource      = (*sources.Cache)(nil)
)

// Deps are the upstream clients. A nil client drops its stages from every chain.
type Deps struct {
	CoinGecko CoinGeckoClient
	Nobitex   NobitexClient
	GoldAPI   GoldAPIClient
	TGJU      TGJUClient
	Navasan   NavasanClient
	Rates     RateSource
	Store     Store
}

// Resolvers holds one chain per live-priced category.
type Resolvers struct {
	CryptoUSD   *Chain
	CryptoLocal *Chain
	GoldSpot    *Chain
	Silver      *Chain
	LocalFX     *Chain
}

// New builds the category chains in their fixed priority order. opts apply to
// every chain.
func New(d Deps, opts ...Option) *Resolvers {
	with := func(extra ...Option) []Option {
		o := append([]Option{}, opts...)
		if d.Store != nil {
			o = append(o, WithStore(d.Store))
		}
		return append(o, extra...)
	}

	var cryptoStages []Stage
	if d.CoinGecko != nil {
		cryptoStages = append(cryptoStages, coinGeckoStage(d.CoinGecko, items.CategoryCrypto))
	}
	if d.Nobitex != nil {
		cryptoStages = append(cryptoStages, nobitexStage(d.Nobitex, providers.NobitexUSDT))
	}
	if d.Rates != nil {
		cryptoStages = append(cryptoStages, bonbastCryptoStage(d.Rates))
	}

	var fxStages []Stage
	if d.TGJU != nil {
		fxStages = append(fxStages, tgjuDollarStage(d.TGJU))
	}
	if d.Rates != nil {
		fxStages = append(fxStages, bonbastDollarStage(d.Rates))
	}
	if d.Navasan != nil {
		fxStages = append(fxStages, navasanDollarStage(d.Navasan))
	}

	var goldStages, silverStages []Stage
	if d.GoldAPI != nil {
		goldStages = append(goldStages, goldAPIStage(d.GoldAPI))
		silverStages = append(silverStages, goldAPIStage(d.GoldAPI))
	}
	if d.CoinGecko != nil {
		goldStages = append(goldStages, coinGeckoStage(d.CoinGecko, items.CategoryMetal))
		silverStages = append(silverStages, coinGeckoStage(d.CoinGecko, items.CategoryMetal))
	}
	if d.Rates != nil {
		goldStages = append(goldStages, bonbastOunceStage(d.Rates))
	}

	r := &Resolvers{
		CryptoUSD: NewChain(prices.CategoryCrypto, cryptoStages, with(WithEstimator(catalogueEstimate(items.CategoryCrypto, prices.UnitUSD)))...),
		GoldSpot:  NewChain(prices.CategoryGoldSpot, goldStages, with(WithEstimator(catalogueEstimate(items.CategoryMetal, prices.UnitUSD)))...),
		Silver:    NewChain(prices.CategorySilver, silverStages, with(WithEstimator(catalogueEstimate(items.CategoryMetal, prices.UnitUSD)))...),
		LocalFX:   NewChain(prices.CategoryLocalFX, fxStages, with(WithEstimator(catalogueEstimate(items.CategoryCurrency, prices.UnitToman)))...),
	}

	var localStages []Stage
	if d.Nobitex != nil {
		localStages = append(localStages, nobitexStage(d.Nobitex, providers.NobitexRial))
	}
	localStages = append(localStages, derivedLocalStage(r.CryptoUSD, r.LocalFX))
	r.CryptoLocal = NewChain(prices.CategoryCryptoLocal, localStages, with(WithEstimator(localCryptoEstimate))...)
	return r
}

// catalogueEstimate serves the per-asset Estimate constants of a catalogue category.
func catalogueEstimate(c items.Category, unit string) Estimator {
	return func(_ context.Context, ids []string) map[string]prices.Quote {
		out := map[string]prices.Quote{}
		for _, id := range ids {
			it, ok := items.Lookup(c, id)
			if !ok || it.Estimate <= 0 {
				continue
			}
			out[id] = prices.Quote{Price: it.Estimate, Unit: unit}
		}
		return out
	}
}

// localCryptoEstimate is the crypto USD estimate times the dollar estimate.
func localCryptoEstimate(_ context.Context, ids []string) map[string]prices.Quote {
	out := map[string]prices.Quote{}
	usd, ok := items.Lookup(items.CategoryCurrency, prices.AssetUSD)
	if !ok || usd.Estimate <= 0 {
		return out
	}
	dollar := decimal.NewFromFloat(usd.Estimate)
	for _, id := range ids {
		it, ok := items.Lookup(items.CategoryCrypto, id)
		if !ok || it.Estimate <= 0 {
			continue
		}
		p, _ := decimal.NewFromFloat(it.Estimate).Mul(dollar).Round(0).Float64()
		out[id] = prices.Quote{Price: p, Unit: prices.UnitToman}
	}
	return out
}
