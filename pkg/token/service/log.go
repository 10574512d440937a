package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atareh/lightvision/pkg/token"
)

const serviceName = "TokenAdminService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the token admin Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{svc: svc, logger: logger}
}

func (ls *logService) AddToken(ctx context.Context, req *AddTokenRequest) (tok *token.Token, err error) {
	start := time.Now()
	ls.logger.Info("AddToken started",
		zap.String("service", serviceName),
		zap.String("contract_address", req.ContractAddress),
		zap.String("symbol", req.Symbol))

	defer func() {
		if err != nil {
			ls.logger.Error("AddToken failed",
				zap.String("service", serviceName),
				zap.String("contract_address", req.ContractAddress),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			return
		}
		ls.logger.Info("AddToken completed",
			zap.String("service", serviceName),
			zap.String("contract_address", tok.ContractAddress),
			zap.Duration("duration", time.Since(start)))
	}()

	return ls.svc.AddToken(ctx, req)
}

func (ls *logService) DeleteToken(ctx context.Context, contractAddress string) (err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.logger.Error("DeleteToken failed",
				zap.String("service", serviceName),
				zap.String("contract_address", contractAddress),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			return
		}
		ls.logger.Info("DeleteToken completed",
			zap.String("service", serviceName),
			zap.String("contract_address", contractAddress),
			zap.Duration("duration", time.Since(start)))
	}()

	return ls.svc.DeleteToken(ctx, contractAddress)
}

func (ls *logService) ListTokens(ctx context.Context, includeHidden bool) ([]*token.Token, error) {
	return ls.svc.ListTokens(ctx, includeHidden)
}

func (ls *logService) SetEnabled(ctx context.Context, contractAddress string, enabled bool) (err error) {
	defer ls.logFlag("SetEnabled", contractAddress, enabled, &err)()
	return ls.svc.SetEnabled(ctx, contractAddress, enabled)
}

func (ls *logService) SetHidden(ctx context.Context, contractAddress string, hidden bool) (err error) {
	defer ls.logFlag("SetHidden", contractAddress, hidden, &err)()
	return ls.svc.SetHidden(ctx, contractAddress, hidden)
}

func (ls *logService) ApplyLiquidityAction(ctx context.Context, req *LiquidityActionRequest) (err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.logger.Error("ApplyLiquidityAction failed",
				zap.String("service", serviceName),
				zap.String("action", req.Action),
				zap.String("contract_address", req.ContractAddress),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			return
		}
		ls.logger.Info("ApplyLiquidityAction completed",
			zap.String("service", serviceName),
			zap.String("action", req.Action),
			zap.String("contract_address", req.ContractAddress),
			zap.Duration("duration", time.Since(start)))
	}()

	return ls.svc.ApplyLiquidityAction(ctx, req)
}

func (ls *logService) logFlag(method, contractAddress string, value bool, err *error) func() {
	start := time.Now()
	return func() {
		if *err != nil {
			ls.logger.Error(method+" failed",
				zap.String("service", serviceName),
				zap.String("contract_address", contractAddress),
				zap.Bool("value", value),
				zap.Duration("duration", time.Since(start)),
				zap.Error(*err))
			return
		}
		ls.logger.Info(method+" completed",
			zap.String("service", serviceName),
			zap.String("contract_address", contractAddress),
			zap.Bool("value", value),
			zap.Duration("duration", time.Since(start)))
	}
}
