package providers_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/providers"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestCoinGecko_SimplePrice(t *testing.T) {
	t.Parallel()

	// Arrange: a mock client answering one coin with a null change and one without a price.
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/v3/simple/price", req.URL.Path)
			require.Equal(t, "bitcoin,ethereum,dogecoin", req.URL.Query().Get("ids"))
			require.Equal(t, "usd", req.URL.Query().Get("vs_currencies"))
			require.Equal(t, "key", req.Header.Get("x-cg-pro-api-key"))
			return jsonResponse(http.StatusOK, `{
				"bitcoin": {"usd": 45000, "usd_24h_change": 2.5, "usd_7d_change": -1.25},
				"ethereum": {"usd": 2500.5, "usd_24h_change": null},
				"dogecoin": {"eur": 0.1}
			}`), nil
		}).
		Times(1)

	client := providers.NewCoinGecko("key", providers.WithHTTPClient(httpClient), providers.WithBaseURL("https://example.test/api/v3/"))

	// Act
	got, err := client.SimplePrice(t.Context(), []string{"bitcoin", "ethereum", "dogecoin"})

	// Assert: dogecoin has no usd price and is dropped.
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 45000.0, got["bitcoin"].Price)
	require.Equal(t, 2.5, *got["bitcoin"].Change24h)
	require.Equal(t, -1.25, *got["bitcoin"].Change7d)
	require.Equal(t, prices.UnitUSD, got["bitcoin"].Unit)
	require.Equal(t, "coingecko", got["bitcoin"].Source)
	require.Nil(t, got["ethereum"].Change24h)
}

func TestCoinGecko_Non200IsUpstreamError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(http.StatusTooManyRequests, `{"status":{"error_code":429}}`), nil).
		Times(1)

	client := providers.NewCoinGecko("", providers.WithHTTPClient(httpClient))
	_, err := client.SimplePrice(t.Context(), []string{"bitcoin"})

	var upstream *prices.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
	require.Equal(t, "coingecko", upstream.Provider)
}

func TestCoinGecko_TransportError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Return(nil, errors.New("connection refused")).Times(1)

	client := providers.NewCoinGecko("", providers.WithHTTPClient(httpClient))
	_, err := client.SimplePrice(t.Context(), []string{"bitcoin"})

	var upstream *prices.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Zero(t, upstream.StatusCode)
}

func TestGoldAPI_Price(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price/XAU":
			w.Write([]byte(`{"name":"Gold","symbol":"XAU","price":1900.25}`))
		case "/price/XAG":
			w.Write([]byte(`{"name":"Silver","symbol":"XAG","price":"oops"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := providers.NewGoldAPI(providers.WithBaseURL(srv.URL))

	gold, err := client.Price(t.Context(), "xau")
	require.NoError(t, err)
	require.Equal(t, 1900.25, gold.Price)
	require.Nil(t, gold.Change24h)

	_, err = client.Price(t.Context(), "XAG")
	require.ErrorIs(t, err, prices.ErrParse)
}

func TestTGJU_Indicator(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/market/indicator/summary-table-data/price_dollar_rl", r.URL.Path)
		w.Write([]byte(`{"data":{"p":"5,800,000","dp":"0.75","dt":"low"}}`))
	}))
	defer srv.Close()

	client := providers.NewTGJU(providers.WithBaseURL(srv.URL + "/v1"))
	got, err := client.Indicator(t.Context(), "price_dollar_rl")

	require.NoError(t, err)
	require.Equal(t, 5800000.0, got.Price)
	require.Equal(t, prices.UnitRial, got.Unit)
	require.Equal(t, -0.75, *got.Change24h)
}

func TestTGJU_MissingData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"maintenance"}`))
	}))
	defer srv.Close()

	_, err := providers.NewTGJU(providers.WithBaseURL(srv.URL)).Indicator(t.Context(), "price_dollar_rl")
	require.ErrorIs(t, err, prices.ErrParse)
}

func TestNobitex_Stats(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "btc,eth,doge", r.URL.Query().Get("srcCurrency"))
		assert.Equal(t, "rls", r.URL.Query().Get("dstCurrency"))
		w.Write([]byte(`{"status":"ok","stats":{
			"btc-rls":{"isClosed":false,"latest":"11285000","dayChange":"-1.2"},
			"eth-rls":{"isClosed":true,"latest":"900000"},
			"doge-rls":{"isClosed":false,"latest":""}
		}}`))
	}))
	defer srv.Close()

	got, err := providers.NewNobitex(providers.WithBaseURL(srv.URL)).Stats(t.Context(), []string{"btc", "eth", "doge"}, providers.NobitexRial)

	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 11285000.0, got["btc"].Price)
	require.Equal(t, prices.UnitRial, got["btc"].Unit)
	require.Equal(t, -1.2, *got["btc"].Change24h)
}

func TestNobitex_FailedStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failed","message":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := providers.NewNobitex(providers.WithBaseURL(srv.URL)).Stats(t.Context(), []string{"btc"}, providers.NobitexUSDT)
	require.ErrorIs(t, err, prices.ErrParse)
}

func TestNavasan_Rates_MergesEndpoints(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/last_currencies.php":
			w.Write([]byte(`{"usd_sell":{"value":"58,000","percent":"0.5"},"eur_sell":{"value":"-"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	got, err := providers.NewNavasan(providers.WithBaseURL(srv.URL)).Rates(t.Context(), []string{"usd_sell", "eur_sell"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 58000.0, got["usd_sell"].Price)
	require.Equal(t, prices.UnitToman, got["usd_sell"].Unit)
}

func TestNavasan_Rates_AllEndpointsDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := providers.NewNavasan(providers.WithBaseURL(srv.URL)).Rates(t.Context(), []string{"usd_sell"})

	var upstream *prices.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode)
}
