package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atareh/lightvision/pkg/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(&config.CoinGeckoConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
}

func TestFetchAssetMarket(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/coins/markets", r.URL.Path)
		require.Equal(t, "hyperliquid", r.URL.Query().Get("ids"))
		require.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		require.Equal(t, "test-key", r.Header.Get("x-cg-demo-api-key"))
		w.Write([]byte(`[{
			"id": "hyperliquid",
			"current_price": 42.5,
			"market_cap": 14000000000,
			"fully_diluted_valuation": 42000000000,
			"total_volume": 250000000,
			"price_change_percentage_24h": -3.2
		}]`))
	})

	market, err := client.FetchAssetMarket(context.Background(), "hyperliquid")
	require.NoError(t, err)
	require.Equal(t, "hyperliquid", market.ID)
	require.Equal(t, 42.5, market.CurrentPrice)
	require.Equal(t, 250000000.0, market.TotalVolume)
	require.NotNil(t, market.PriceChange24hPct)
	require.Equal(t, -3.2, *market.PriceChange24hPct)
}

func TestFetchAssetMarket_MissingOptionalFields(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "hyperliquid", "current_price": 42.5}]`))
	})

	market, err := client.FetchAssetMarket(context.Background(), "hyperliquid")
	require.NoError(t, err)
	require.Zero(t, market.MarketCap)
	require.Nil(t, market.PriceChange24hPct)
}

func TestFetchAssetMarket_NotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := client.FetchAssetMarket(context.Background(), "nope")
	require.ErrorIs(t, err, ErrAssetNotFound)
}

func TestFetchAssetMarket_UpstreamError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.FetchAssetMarket(context.Background(), "hyperliquid")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
