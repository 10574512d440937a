package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/atareh/lightvision/pkg/config"
)

// ErrAssetNotFound indicates the aggregator returned no row for the
// requested asset id.
var ErrAssetNotFound = errors.New("asset not found")

// AssetMarket is the market-data row for a single asset.
type AssetMarket struct {
	ID                    string   `json:"id"`
	CurrentPrice          float64  `json:"current_price"`
	MarketCap             float64  `json:"market_cap"`
	FullyDilutedValuation float64  `json:"fully_diluted_valuation"`
	TotalVolume           float64  `json:"total_volume"`
	PriceChange24hPct     *float64 `json:"price_change_percentage_24h"`
}

// Client calls the market-data aggregator
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a market-data aggregator client
func New(cfg *config.CoinGeckoConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchAssetMarket returns the current market row for one asset id.
// Returns ErrAssetNotFound when the aggregator reports no such asset.
func (c *Client) FetchAssetMarket(ctx context.Context, assetID string) (*AssetMarket, error) {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("ids", assetID)

	endpoint := fmt.Sprintf("%s/coins/markets?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("markets request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("markets request returned status %d: %s", resp.StatusCode, string(body))
	}

	var rows []AssetMarket
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode markets response: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("asset %q: %w", assetID, ErrAssetNotFound)
	}
	return &rows[0], nil
}
