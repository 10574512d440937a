package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/atareh/lightvision/pkg/app/errors"
	"github.com/atareh/lightvision/pkg/token"
	"github.com/atareh/lightvision/pkg/tokenstore"
)

// Liquidity admin actions.
const ActionRestore = "restore"

// Store is the narrow registry interface for the admin service.
// Defined here to keep the service decoupled from tokenstore internals.
type Store interface {
	CreateToken(ctx context.Context, tok *token.Token) error
	GetToken(ctx context.Context, contractAddress string) (*token.Token, error)
	ListTokens(ctx context.Context, includeHidden bool) ([]*token.Token, error)
	DeleteToken(ctx context.Context, contractAddress string) error
	SetEnabled(ctx context.Context, contractAddress string, enabled bool) error
	SetHidden(ctx context.Context, contractAddress string, hidden bool) error
	SetLowLiquidity(ctx context.Context, contractAddress string, lowLiquidity bool) error
}

// MetricStore is the slice of the snapshot store the cascade delete needs.
type MetricStore interface {
	DeleteTokenMetrics(ctx context.Context, contractAddress string) error
}

// AddTokenRequest carries admin-supplied token metadata
type AddTokenRequest struct {
	ContractAddress string `json:"contract_address" validate:"required,min=3,max=66"`
	Symbol          string `json:"symbol" validate:"required,max=32"`
	Name            string `json:"name" validate:"required,max=128"`
}

// LiquidityActionRequest carries the liquidity admin action payload
type LiquidityActionRequest struct {
	Action          string `json:"action" validate:"required"`
	ContractAddress string `json:"contract_address" validate:"required"`
}

// Service defines the token administration operations
type Service interface {
	AddToken(ctx context.Context, req *AddTokenRequest) (*token.Token, error)
	DeleteToken(ctx context.Context, contractAddress string) error
	ListTokens(ctx context.Context, includeHidden bool) ([]*token.Token, error)
	SetEnabled(ctx context.Context, contractAddress string, enabled bool) error
	SetHidden(ctx context.Context, contractAddress string, hidden bool) error
	ApplyLiquidityAction(ctx context.Context, req *LiquidityActionRequest) error
}

type tokenService struct {
	store    Store
	metrics  MetricStore
	logger   *zap.Logger
	validate *validator.Validate
}

// NewService creates the token administration service
func NewService(store Store, metrics MetricStore, logger *zap.Logger) Service {
	return &tokenService{
		store:    store,
		metrics:  metrics,
		logger:   logger,
		validate: validator.New(),
	}
}

// AddToken registers a new token from metadata only; market fields are
// filled in by the next refresh cycle. Duplicate contract addresses are
// rejected with a conflict.
func (s *tokenService) AddToken(ctx context.Context, req *AddTokenRequest) (*token.Token, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.BadRequestError(err, "invalid token payload")
	}

	tok := token.New(req.ContractAddress, req.Symbol, req.Name)
	if err := s.store.CreateToken(ctx, tok); err != nil {
		if errors.Is(err, tokenstore.ErrDuplicate) {
			return nil, apperrors.ConflictError(err, "token is already tracked")
		}
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	return tok, nil
}

// DeleteToken removes a token and its metric history. A failure to clear
// the history is logged but does not block the registry delete.
func (s *tokenService) DeleteToken(ctx context.Context, contractAddress string) error {
	address := token.NormalizeAddress(contractAddress)
	if address == "" {
		return apperrors.BadRequestError(nil, "contract address is required")
	}

	if err := s.metrics.DeleteTokenMetrics(ctx, address); err != nil {
		s.logger.Error("failed to delete token metric history",
			zap.String("contract_address", address),
			zap.Error(err))
	}

	if err := s.store.DeleteToken(ctx, address); err != nil {
		if errors.Is(err, tokenstore.ErrTokenNotFound) {
			return apperrors.ResourceNotFoundError(err, "token not found")
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (s *tokenService) ListTokens(ctx context.Context, includeHidden bool) ([]*token.Token, error) {
	tokens, err := s.store.ListTokens(ctx, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

func (s *tokenService) SetEnabled(ctx context.Context, contractAddress string, enabled bool) error {
	return s.setFlag(ctx, contractAddress, enabled, s.store.SetEnabled)
}

func (s *tokenService) SetHidden(ctx context.Context, contractAddress string, hidden bool) error {
	return s.setFlag(ctx, contractAddress, hidden, s.store.SetHidden)
}

func (s *tokenService) setFlag(ctx context.Context, contractAddress string, value bool, apply func(context.Context, string, bool) error) error {
	address := token.NormalizeAddress(contractAddress)
	if address == "" {
		return apperrors.BadRequestError(nil, "contract address is required")
	}
	if err := apply(ctx, address, value); err != nil {
		if errors.Is(err, tokenstore.ErrTokenNotFound) {
			return apperrors.ResourceNotFoundError(err, "token not found")
		}
		return err
	}
	return nil
}

// ApplyLiquidityAction handles the liquidity admin actions. The restore
// action clears the low-liquidity flag; the next refresh cycle may set
// it again, the override is not sticky.
func (s *tokenService) ApplyLiquidityAction(ctx context.Context, req *LiquidityActionRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperrors.BadRequestError(err, "invalid liquidity action payload")
	}

	switch req.Action {
	case ActionRestore:
		return s.setFlag(ctx, req.ContractAddress, false, s.store.SetLowLiquidity)
	default:
		return apperrors.BadRequestError(nil, fmt.Sprintf("unknown liquidity action %q", req.Action))
	}
}
