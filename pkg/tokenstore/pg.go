package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/atareh/lightvision/pkg/token"
)

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrDuplicate     = errors.New("token already tracked")
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the token registry store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateToken(ctx context.Context, tok *token.Token) error {
	exists, err := s.db.NewSelect().
		Model((*TokenDao)(nil)).
		Where("contract_address = ?", tok.ContractAddress).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for existing token: %w", err)
	}
	if exists {
		return ErrDuplicate
	}

	_, err = s.db.NewInsert().
		Model(toTokenDao(tok)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

func (s *pgStore) GetToken(ctx context.Context, contractAddress string) (*token.Token, error) {
	dao := new(TokenDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("contract_address = ?", token.NormalizeAddress(contractAddress)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return toToken(dao), nil
}

// ListTokens returns all tracked tokens; when includeHidden is false,
// hidden tokens are filtered out.
func (s *pgStore) ListTokens(ctx context.Context, includeHidden bool) ([]*token.Token, error) {
	var daos []*TokenDao
	q := s.db.NewSelect().
		Model(&daos).
		Order("symbol ASC")
	if !includeHidden {
		q = q.Where("hidden = FALSE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	tokens := make([]*token.Token, 0, len(daos))
	for _, dao := range daos {
		tokens = append(tokens, toToken(dao))
	}
	return tokens, nil
}

// ListEnabledTokens returns the tokens the sync jobs should refresh.
func (s *pgStore) ListEnabledTokens(ctx context.Context) ([]*token.Token, error) {
	var daos []*TokenDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("enabled = TRUE").
		Order("contract_address ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled tokens: %w", err)
	}

	tokens := make([]*token.Token, 0, len(daos))
	for _, dao := range daos {
		tokens = append(tokens, toToken(dao))
	}
	return tokens, nil
}

func (s *pgStore) DeleteToken(ctx context.Context, contractAddress string) error {
	res, err := s.db.NewDelete().
		Model((*TokenDao)(nil)).
		Where("contract_address = ?", token.NormalizeAddress(contractAddress)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *pgStore) SetEnabled(ctx context.Context, contractAddress string, enabled bool) error {
	return s.setFlag(ctx, contractAddress, "enabled", enabled)
}

func (s *pgStore) SetHidden(ctx context.Context, contractAddress string, hidden bool) error {
	return s.setFlag(ctx, contractAddress, "hidden", hidden)
}

// SetLowLiquidity persists the classification flag. The admin "restore"
// action and the refresh cycle both go through here; the flag is plain
// state, not sticky.
func (s *pgStore) SetLowLiquidity(ctx context.Context, contractAddress string, lowLiquidity bool) error {
	return s.setFlag(ctx, contractAddress, "low_liquidity", lowLiquidity)
}

func (s *pgStore) setFlag(ctx context.Context, contractAddress, column string, value bool) error {
	res, err := s.db.NewUpdate().
		Model((*TokenDao)(nil)).
		Set("? = ?", bun.Ident(column), value).
		Set("updated_at = ?", time.Now().UTC()).
		Where("contract_address = ?", token.NormalizeAddress(contractAddress)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// UpdateMarketData overwrites price/liquidity/volume/market-cap fields and
// the low-liquidity classification for one refresh cycle.
func (s *pgStore) UpdateMarketData(ctx context.Context, contractAddress string, data token.MarketData, lowLiquidity bool) error {
	_, err := s.db.NewUpdate().
		Model((*TokenDao)(nil)).
		Set("price = ?", data.Price).
		Set("liquidity_usd = ?", data.LiquidityUSD).
		Set("volume_24h = ?", data.Volume24h).
		Set("market_cap = ?", data.MarketCap).
		Set("low_liquidity = ?", lowLiquidity).
		Set("updated_at = ?", time.Now().UTC()).
		Where("contract_address = ?", token.NormalizeAddress(contractAddress)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update market data: %w", err)
	}
	return nil
}

// UpdateSocials overwrites the website/social fields only.
func (s *pgStore) UpdateSocials(ctx context.Context, contractAddress string, socials token.Socials) error {
	_, err := s.db.NewUpdate().
		Model((*TokenDao)(nil)).
		Set("website = ?", nullable(socials.Website)).
		Set("twitter = ?", nullable(socials.Twitter)).
		Set("telegram = ?", nullable(socials.Telegram)).
		Set("discord = ?", nullable(socials.Discord)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("contract_address = ?", token.NormalizeAddress(contractAddress)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update socials: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
