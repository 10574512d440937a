package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atareh/lightvision/pkg/config"
)

// MaxBatchSize is the largest number of token addresses accepted in a
// single pairs request.
const MaxBatchSize = 30

// Pair is one trading pair as reported by the DEX metadata service.
type Pair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	MarketCap float64 `json:"marketCap"`
	Fdv       float64 `json:"fdv"`
	Info      struct {
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
		Socials []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

// TokenMarket is the per-token market view derived from the token's most
// liquid pair. Pointer fields are nil when the service did not report a
// value, which the liquidity classifier treats differently from zero.
type TokenMarket struct {
	Address      string
	PriceUSD     *float64
	LiquidityUSD *float64
	Volume24h    *float64
	MarketCap    *float64
}

// TokenSocials carries the link metadata attached to a token's pairs.
type TokenSocials struct {
	Address  string
	Website  *string
	Twitter  *string
	Telegram *string
	Discord  *string
}

// Client calls the DEX metadata service
type Client struct {
	baseURL string
	chainID string
	http    *http.Client
}

// New creates a DEX metadata client
func New(cfg *config.DexScreenerConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		chainID: cfg.ChainID,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchPairs returns all pairs whose base token is one of the given
// contract addresses. At most MaxBatchSize addresses per call.
func (c *Client) FetchPairs(ctx context.Context, addresses []string) ([]Pair, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	if len(addresses) > MaxBatchSize {
		return nil, fmt.Errorf("too many addresses in one batch: %d > %d", len(addresses), MaxBatchSize)
	}

	url := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, strings.Join(addresses, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pairs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("pairs request returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Pairs []Pair `json:"pairs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode pairs response: %w", err)
	}
	return payload.Pairs, nil
}

// FetchMarkets fetches pairs for the given addresses and reduces them to
// one TokenMarket per token, keyed by lowercase contract address. Tokens
// with no pair on the configured chain are absent from the result.
func (c *Client) FetchMarkets(ctx context.Context, addresses []string) (map[string]TokenMarket, error) {
	pairs, err := c.FetchPairs(ctx, addresses)
	if err != nil {
		return nil, err
	}

	markets := make(map[string]TokenMarket)
	for _, pair := range c.bestPairs(pairs) {
		market := TokenMarket{Address: strings.ToLower(pair.BaseToken.Address)}
		if price, err := decimal.NewFromString(pair.PriceUsd); err == nil {
			p, _ := price.Float64()
			market.PriceUSD = &p
		}
		liq := pair.Liquidity.USD
		vol := pair.Volume.H24
		market.LiquidityUSD = &liq
		market.Volume24h = &vol
		if pair.MarketCap > 0 {
			mcap := pair.MarketCap
			market.MarketCap = &mcap
		} else if pair.Fdv > 0 {
			fdv := pair.Fdv
			market.MarketCap = &fdv
		}
		markets[market.Address] = market
	}
	return markets, nil
}

// FetchSocials fetches pairs for the given addresses and extracts website
// and social links from each token's most liquid pair.
func (c *Client) FetchSocials(ctx context.Context, addresses []string) (map[string]TokenSocials, error) {
	pairs, err := c.FetchPairs(ctx, addresses)
	if err != nil {
		return nil, err
	}

	socials := make(map[string]TokenSocials)
	for addr, pair := range c.bestPairs(pairs) {
		entry := TokenSocials{Address: addr}
		if len(pair.Info.Websites) > 0 {
			url := pair.Info.Websites[0].URL
			entry.Website = &url
		}
		for _, social := range pair.Info.Socials {
			url := social.URL
			switch strings.ToLower(social.Type) {
			case "twitter":
				entry.Twitter = &url
			case "telegram":
				entry.Telegram = &url
			case "discord":
				entry.Discord = &url
			}
		}
		socials[addr] = entry
	}
	return socials, nil
}

// bestPairs keeps, per base token, the pair with the highest USD
// liquidity on the configured chain.
func (c *Client) bestPairs(pairs []Pair) map[string]Pair {
	best := make(map[string]Pair)
	for _, pair := range pairs {
		if c.chainID != "" && pair.ChainID != c.chainID {
			continue
		}
		addr := strings.ToLower(pair.BaseToken.Address)
		if addr == "" {
			continue
		}
		current, ok := best[addr]
		if !ok || pair.Liquidity.USD > current.Liquidity.USD {
			best[addr] = pair
		}
	}
	return best
}
