package tokenstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/atareh/lightvision/pkg/token"
)

// TokenDao is a data access object that maps directly to the 'tokens' table in PostgreSQL.
type TokenDao struct {
	bun.BaseModel   `bun:"table:tokens,alias:t"`
	ContractAddress string     `bun:"contract_address,pk,type:varchar(66)"`
	Symbol          string     `bun:"symbol,notnull,type:varchar(32)"`
	Name            string     `bun:"name,notnull,type:varchar(128)"`
	Enabled         bool       `bun:"enabled,notnull,default:true"`
	Hidden          bool       `bun:"hidden,notnull,default:false"`
	LowLiquidity    bool       `bun:"low_liquidity,notnull,default:false"`
	Website         *string    `bun:"website,type:varchar(512)"`
	Twitter         *string    `bun:"twitter,type:varchar(512)"`
	Telegram        *string    `bun:"telegram,type:varchar(512)"`
	Discord         *string    `bun:"discord,type:varchar(512)"`
	Price           *float64   `bun:"price"`
	LiquidityUSD    *float64   `bun:"liquidity_usd"`
	Volume24h       *float64   `bun:"volume_24h"`
	MarketCap       *float64   `bun:"market_cap"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt       *time.Time `bun:"updated_at"`
}

// toTokenDao converts a token.Token to TokenDao.
func toTokenDao(tok *token.Token) *TokenDao {
	dao := &TokenDao{
		ContractAddress: tok.ContractAddress,
		Symbol:          tok.Symbol,
		Name:            tok.Name,
		Enabled:         tok.Enabled,
		Hidden:          tok.Hidden,
		LowLiquidity:    tok.LowLiquidity,
		Price:           tok.Price,
		LiquidityUSD:    tok.LiquidityUSD,
		Volume24h:       tok.Volume24h,
		MarketCap:       tok.MarketCap,
	}

	if tok.Website != "" {
		dao.Website = &tok.Website
	}
	if tok.Twitter != "" {
		dao.Twitter = &tok.Twitter
	}
	if tok.Telegram != "" {
		dao.Telegram = &tok.Telegram
	}
	if tok.Discord != "" {
		dao.Discord = &tok.Discord
	}

	return dao
}

// toToken converts a TokenDao to token.Token.
func toToken(dao *TokenDao) *token.Token {
	tok := &token.Token{
		ContractAddress: dao.ContractAddress,
		Symbol:          dao.Symbol,
		Name:            dao.Name,
		Enabled:         dao.Enabled,
		Hidden:          dao.Hidden,
		LowLiquidity:    dao.LowLiquidity,
		Price:           dao.Price,
		LiquidityUSD:    dao.LiquidityUSD,
		Volume24h:       dao.Volume24h,
		MarketCap:       dao.MarketCap,
		CreatedAt:       dao.CreatedAt,
	}

	if dao.Website != nil {
		tok.Website = *dao.Website
	}
	if dao.Twitter != nil {
		tok.Twitter = *dao.Twitter
	}
	if dao.Telegram != nil {
		tok.Telegram = *dao.Telegram
	}
	if dao.Discord != nil {
		tok.Discord = *dao.Discord
	}
	if dao.UpdatedAt != nil {
		tok.UpdatedAt = *dao.UpdatedAt
	}

	return tok
}
