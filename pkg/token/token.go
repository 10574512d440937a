// Package token defines the tracked-token domain model shared across
// the admin service, sync jobs and stores.
package token

import (
	"strings"
	"time"
)

// Token represents a tracked asset in the registry.
// ContractAddress is the primary identifier and is always stored lowercase.
type Token struct {
	ContractAddress string
	Symbol          string
	Name            string
	Enabled         bool
	Hidden          bool
	LowLiquidity    bool

	Website  string
	Twitter  string
	Telegram string
	Discord  string

	Price        *float64
	LiquidityUSD *float64
	Volume24h    *float64
	MarketCap    *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a Token from admin-supplied metadata. Market fields are
// populated later by the refresh job.
func New(contractAddress, symbol, name string) *Token {
	return &Token{
		ContractAddress: NormalizeAddress(contractAddress),
		Symbol:          symbol,
		Name:            name,
		Enabled:         true,
	}
}

// NormalizeAddress lowercases and trims a contract address so lookups are
// case-insensitive.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Socials is the website/social-link subset written by the social sync job.
type Socials struct {
	Website  string
	Twitter  string
	Telegram string
	Discord  string
}

// MarketData is the market-field subset written by the refresh job.
type MarketData struct {
	Price        *float64
	LiquidityUSD *float64
	Volume24h    *float64
	MarketCap    *float64
}

// Visible reports whether the token counts toward the dashboard's visible
// aggregate. Hidden and low-liquidity tokens stay tracked but are excluded.
func (t *Token) Visible() bool {
	return !t.Hidden && !t.LowLiquidity
}
