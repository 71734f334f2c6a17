package resolve_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/providers"
	"github.com/Armin-kho/price-snapshot-bot/internal/resolve"
	"github.com/Armin-kho/price-snapshot-bot/internal/sources"
)

var errDown = errors.New("down")

type fakeCoinGecko struct {
	quotes map[string]prices.Quote
	err    error
	asked  [][]string
}

func (f *fakeCoinGecko) SimplePrice(_ context.Context, ids []string) (map[string]prices.Quote, error) {
	f.asked = append(f.asked, ids)
	return f.quotes, f.err
}

type fakeNobitex struct {
	rls, usdt map[string]prices.Quote
	err       error
}

func (f *fakeNobitex) Stats(_ context.Context, _ []string, dst string) (map[string]prices.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	if dst == providers.NobitexRial {
		return f.rls, nil
	}
	return f.usdt, nil
}

type fakeGoldAPI struct {
	quotes map[string]prices.Quote
}

func (f *fakeGoldAPI) Price(_ context.Context, symbol string) (prices.Quote, error) {
	q, ok := f.quotes[symbol]
	if !ok {
		return prices.Quote{}, errDown
	}
	return q, nil
}

type fakeTGJU struct {
	quote prices.Quote
	err   error
}

func (f *fakeTGJU) Indicator(context.Context, string) (prices.Quote, error) { return f.quote, f.err }

type blockingTGJU struct{}

func (blockingTGJU) Indicator(ctx context.Context, _ string) (prices.Quote, error) {
	<-ctx.Done()
	return prices.Quote{}, ctx.Err()
}

type fakeNavasan struct {
	quotes map[string]prices.Quote
}

func (f *fakeNavasan) Rates(context.Context, []string) (map[string]prices.Quote, error) {
	return f.quotes, nil
}

type fakeRates struct {
	snap sources.RateSnapshot
	err  error
}

func (f *fakeRates) Snapshot(context.Context, bool) (sources.RateSnapshot, error) { return f.snap, f.err }

func TestCryptoUSD_FallsBackToNobitexThenBonbast(t *testing.T) {
	t.Parallel()

	rates := &fakeRates{snap: sources.RateSnapshot{
		ReferenceCrypto: map[string]sources.SpotRate{"bitcoin": {Price: 45100, Unit: "usd"}},
	}}

	// CoinGecko down, Nobitex has ethereum only.
	r := resolve.New(resolve.Deps{
		CoinGecko: &fakeCoinGecko{err: errDown},
		Nobitex:   &fakeNobitex{usdt: map[string]prices.Quote{"eth": {Price: 2400, Unit: prices.UnitUSD, Source: "nobitex"}}},
		Rates:     rates,
	})
	res, err := r.CryptoUSD.Resolve(t.Context(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	assert.Equal(t, "nobitex-usdt", res.Source)
	assert.Equal(t, 2400.0, res.Quotes["ethereum"].Price)
	assert.NotContains(t, res.Quotes, "bitcoin")

	// Nobitex down as well: Bonbast reference crypto answers for bitcoin.
	r = resolve.New(resolve.Deps{
		CoinGecko: &fakeCoinGecko{err: errDown},
		Nobitex:   &fakeNobitex{err: errDown},
		Rates:     rates,
	})
	res, err = r.CryptoUSD.Resolve(t.Context(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	assert.Equal(t, "bonbast", res.Source)
	assert.Equal(t, 45100.0, res.Quotes["bitcoin"].Price)
	assert.Len(t, res.Failures, 2)
}

func TestCryptoLocal_DerivedWhenNobitexFails(t *testing.T) {
	t.Parallel()

	r := resolve.New(resolve.Deps{
		CoinGecko: &fakeCoinGecko{quotes: map[string]prices.Quote{
			"bitcoin": {Price: 45000, Change24h: prices.Float(2.5), Unit: prices.UnitUSD, Source: "coingecko"},
		}},
		Nobitex: &fakeNobitex{err: errDown},
		TGJU:    &fakeTGJU{quote: prices.Quote{Price: 580000, Unit: prices.UnitRial, Source: "tgju"}},
	})

	res, err := r.CryptoLocal.Resolve(t.Context(), []string{"bitcoin"})

	require.NoError(t, err)
	assert.Equal(t, "derived", res.Source)
	q := res.Quotes["bitcoin"]
	assert.Equal(t, 45000.0*58000, q.Price)
	assert.Equal(t, prices.UnitToman, q.Unit)
	assert.Nil(t, q.Change24h, "the USD change is not carried over")
}

func TestCryptoLocal_DerivedSurvivesSlowFirstDollarStage(t *testing.T) {
	t.Parallel()

	// Arrange: TGJU hangs for a whole stage timeout before Bonbast answers.
	r := resolve.New(resolve.Deps{
		CoinGecko: &fakeCoinGecko{quotes: map[string]prices.Quote{
			"bitcoin": {Price: 45000, Unit: prices.UnitUSD, Source: "coingecko"},
		}},
		TGJU: blockingTGJU{},
		Rates: &fakeRates{snap: sources.RateSnapshot{
			Currencies: map[string]sources.PairRate{prices.AssetUSD: {Buy: 58000, Sell: 58100}},
		}},
	}, resolve.WithStageTimeout(100*time.Millisecond))

	// Act
	res, err := r.CryptoLocal.Resolve(t.Context(), []string{"bitcoin"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "derived", res.Source)
	q := res.Quotes["bitcoin"]
	assert.False(t, q.Estimated)
	assert.Equal(t, 45000.0*58100, q.Price)
}

func TestCryptoLocal_NobitexRial(t *testing.T) {
	t.Parallel()

	r := resolve.New(resolve.Deps{
		Nobitex: &fakeNobitex{rls: map[string]prices.Quote{
			"btc": {Price: 11285000, Change24h: prices.Float(-0.4), Unit: prices.UnitRial, Source: "nobitex"},
		}},
	})

	res, err := r.CryptoLocal.Resolve(t.Context(), []string{"bitcoin"})

	require.NoError(t, err)
	assert.Equal(t, 1128500.0, res.Quotes["bitcoin"].Price)
	assert.Equal(t, -0.4, *res.Quotes["bitcoin"].Change24h)
}

func TestCryptoLocal_EstimateWhenEverythingFails(t *testing.T) {
	t.Parallel()

	r := resolve.New(resolve.Deps{
		CoinGecko: &fakeCoinGecko{err: errDown},
		Nobitex:   &fakeNobitex{err: errDown},
		TGJU:      &fakeTGJU{err: errDown},
	})

	res, err := r.CryptoLocal.Resolve(t.Context(), []string{"bitcoin"})

	require.NoError(t, err)
	assert.Equal(t, resolve.SourceEstimate, res.Source)
	assert.True(t, res.Quotes["bitcoin"].Estimated)
	assert.Equal(t, 45000.0*580000, res.Quotes["bitcoin"].Price)
}

func TestGoldSpot_Chain(t *testing.T) {
	t.Parallel()

	rates := &fakeRates{snap: sources.RateSnapshot{Gold: map[string]sources.SpotRate{"ounce": {Price: 1901, Unit: "usd"}}}}
	cg := &fakeCoinGecko{quotes: map[string]prices.Quote{"pax-gold": {Price: 1899, Unit: prices.UnitUSD, Source: "coingecko"}}}

	r := resolve.New(resolve.Deps{GoldAPI: &fakeGoldAPI{}, CoinGecko: cg, Rates: rates})
	res, err := r.GoldSpot.Resolve(t.Context(), []string{prices.AssetGold})
	require.NoError(t, err)
	assert.Equal(t, "coingecko", res.Source)
	assert.Equal(t, 1899.0, res.Quotes[prices.AssetGold].Price)
	assert.Equal(t, []string{"pax-gold"}, cg.asked[0])

	r = resolve.New(resolve.Deps{GoldAPI: &fakeGoldAPI{}, CoinGecko: &fakeCoinGecko{err: errDown}, Rates: rates})
	res, err = r.GoldSpot.Resolve(t.Context(), []string{prices.AssetGold})
	require.NoError(t, err)
	assert.Equal(t, "bonbast", res.Source)
	assert.Equal(t, 1901.0, res.Quotes[prices.AssetGold].Price)
}

func TestSilver_GoldAPI(t *testing.T) {
	t.Parallel()

	r := resolve.New(resolve.Deps{GoldAPI: &fakeGoldAPI{quotes: map[string]prices.Quote{
		"XAG": {Price: 24.5, Unit: prices.UnitUSD, Source: "gold-api"},
	}}})

	res, err := r.Silver.Resolve(t.Context(), []string{prices.AssetSilver})

	require.NoError(t, err)
	assert.Equal(t, 24.5, res.Quotes[prices.AssetSilver].Price)
}

func TestLocalFX_Chain(t *testing.T) {
	t.Parallel()

	// TGJU quotes in rial and is normalised.
	r := resolve.New(resolve.Deps{TGJU: &fakeTGJU{quote: prices.Quote{Price: 5800000, Unit: prices.UnitRial, Source: "tgju"}}})
	res, err := r.LocalFX.Resolve(t.Context(), []string{prices.AssetUSD})
	require.NoError(t, err)
	assert.Equal(t, 580000.0, res.Quotes[prices.AssetUSD].Price)

	// Bonbast sell rate next.
	rates := &fakeRates{snap: sources.RateSnapshot{Currencies: map[string]sources.PairRate{"usd": {Buy: 57900, Sell: 58000, Unit: "toman"}}}}
	r = resolve.New(resolve.Deps{TGJU: &fakeTGJU{err: errDown}, Rates: rates, Navasan: &fakeNavasan{}})
	res, err = r.LocalFX.Resolve(t.Context(), []string{prices.AssetUSD})
	require.NoError(t, err)
	assert.Equal(t, "bonbast", res.Source)
	assert.Equal(t, 58000.0, res.Quotes[prices.AssetUSD].Price)
	assert.Equal(t, 57900.0, *res.Quotes[prices.AssetUSD].Buy)

	// Navasan last.
	r = resolve.New(resolve.Deps{
		TGJU:    &fakeTGJU{err: errDown},
		Rates:   &fakeRates{err: prices.ErrCaptureTimeout},
		Navasan: &fakeNavasan{quotes: map[string]prices.Quote{"usd_sell": {Price: 58200, Unit: prices.UnitToman, Source: "navasan"}}},
	})
	res, err = r.LocalFX.Resolve(t.Context(), []string{prices.AssetUSD})
	require.NoError(t, err)
	assert.Equal(t, "navasan", res.Source)
	require.Len(t, res.Failures, 2)
	assert.ErrorIs(t, res.Failures[1].Err, prices.ErrCaptureTimeout)
}
