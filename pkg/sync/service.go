package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atareh/lightvision/internal/metrics"
	"github.com/atareh/lightvision/pkg/snapshotstore"
	"github.com/atareh/lightvision/pkg/sources/coingecko"
	"github.com/atareh/lightvision/pkg/sources/dexscreener"
	"github.com/atareh/lightvision/pkg/sources/dune"
	"github.com/atareh/lightvision/pkg/token"
)

// TokenStore is the narrow registry interface the sync jobs need.
// Defined here to keep the jobs decoupled from tokenstore internals.
type TokenStore interface {
	ListEnabledTokens(ctx context.Context) ([]*token.Token, error)
	UpdateMarketData(ctx context.Context, contractAddress string, data token.MarketData, lowLiquidity bool) error
	UpdateSocials(ctx context.Context, contractAddress string, socials token.Socials) error
}

// SnapshotStore is the narrow snapshot persistence interface for the jobs.
type SnapshotStore interface {
	InsertTokenMetrics(ctx context.Context, rows []*snapshotstore.TokenMetricDao) error
	InsertEcosystemMetric(ctx context.Context, row *snapshotstore.EcosystemMetricDao) error
	InsertAssetPrice(ctx context.Context, row *snapshotstore.AssetPriceDao) error
	LatestAssetPrice(ctx context.Context, assetID string) (*snapshotstore.AssetPriceDao, error)
	UpsertRevenue(ctx context.Context, rows []*snapshotstore.RevenueDao) error
	InsertProtocolTvl(ctx context.Context, rows []*snapshotstore.ProtocolTvlDao) error
	CreateExecution(ctx context.Context, executionID string, queryID int64) error
	ListPendingExecutions(ctx context.Context) ([]*snapshotstore.ExecutionDao, error)
	FinishExecution(ctx context.Context, executionID, status string) (bool, error)
	RecordJobRun(ctx context.Context, jobType, status, correlationID, message string, startedAt time.Time) error
}

// DexSource fetches per-token market data and social links.
type DexSource interface {
	FetchMarkets(ctx context.Context, addresses []string) (map[string]dexscreener.TokenMarket, error)
	FetchSocials(ctx context.Context, addresses []string) (map[string]dexscreener.TokenSocials, error)
}

// AssetSource fetches the market row for the tracked external asset.
type AssetSource interface {
	FetchAssetMarket(ctx context.Context, assetID string) (*coingecko.AssetMarket, error)
}

// QueryEngine submits and polls asynchronous analytics queries.
type QueryEngine interface {
	Execute(ctx context.Context, queryID int64) (*dune.Execution, error)
	GetResult(ctx context.Context, executionID string) (*dune.Result, error)
}

// Service defines the sync job operations exposed to the scheduler and
// the trigger endpoints.
type Service interface {
	RunRefresh(ctx context.Context) (*RunResult, error)
	RunSocial(ctx context.Context) (*RunResult, error)
	RunAssetPrice(ctx context.Context) (*RunResult, error)
	SubmitRevenue(ctx context.Context) (*RunResult, error)
	SubmitTvl(ctx context.Context) (*RunResult, error)
	Reconcile(ctx context.Context) (*RunResult, error)
}

// Options carries the job tuning knobs
type Options struct {
	AssetID            string
	RevenueQueryID     int64
	TvlQueryID         int64
	LiquidityThreshold float64
	FetchConcurrency   int
}

type syncService struct {
	tokens    TokenStore
	snapshots SnapshotStore
	dex       DexSource
	asset     AssetSource
	engine    QueryEngine
	guard     *RunGuard
	logger    *zap.Logger
	opts      Options

	// resultHandlers maps a query id to the routine that persists its
	// completed result rows.
	resultHandlers map[int64]func(ctx context.Context, executionID string, rows []map[string]any) error
}

// NewService creates the sync job service
func NewService(
	tokens TokenStore,
	snapshots SnapshotStore,
	dex DexSource,
	asset AssetSource,
	engine QueryEngine,
	guard *RunGuard,
	logger *zap.Logger,
	opts Options,
) Service {
	if opts.LiquidityThreshold <= 0 {
		opts.LiquidityThreshold = token.DefaultLiquidityThreshold
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 4
	}

	s := &syncService{
		tokens:    tokens,
		snapshots: snapshots,
		dex:       dex,
		asset:     asset,
		engine:    engine,
		guard:     guard,
		logger:    logger,
		opts:      opts,
	}
	s.resultHandlers = map[int64]func(ctx context.Context, executionID string, rows []map[string]any) error{
		opts.RevenueQueryID: s.persistRevenueRows,
		opts.TvlQueryID:     s.persistTvlRows,
	}
	return s
}

// recordRun writes the audit row and the run metrics. Audit failures are
// logged, never surfaced: the job outcome itself takes precedence.
func (s *syncService) recordRun(ctx context.Context, jobType, status, correlationID, message string, startedAt time.Time) {
	metrics.SyncRuns.WithLabelValues(jobType, status).Inc()
	metrics.SyncDuration.WithLabelValues(jobType).Observe(time.Since(startedAt).Seconds())

	if err := s.snapshots.RecordJobRun(ctx, jobType, status, correlationID, message, startedAt); err != nil {
		s.logger.Error("failed to record job run",
			zap.String("job", jobType),
			zap.String("correlation_id", correlationID),
			zap.Error(err))
	}
}

// batchStatus derives the terminal run status from per-item counts.
func batchStatus(succeeded, failed int) string {
	switch {
	case failed == 0:
		return snapshotstore.RunCompleted
	case succeeded > 0:
		return snapshotstore.RunPartialFailure
	default:
		return snapshotstore.RunFailed
	}
}
