package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atareh/lightvision/internal/metrics"
	apperrors "github.com/atareh/lightvision/pkg/app/errors"
	"github.com/atareh/lightvision/pkg/snapshotstore"
	"github.com/atareh/lightvision/pkg/sources/dexscreener"
	"github.com/atareh/lightvision/pkg/token"
)

// RunRefresh pulls market data for every enabled token, appends one
// metric snapshot per successfully fetched token, reclassifies
// low-liquidity flags, and writes the ecosystem aggregate once all
// per-token outcomes are accounted for. Individual fetch failures are
// skipped, not fatal.
func (s *syncService) RunRefresh(ctx context.Context) (*RunResult, error) {
	release, ok := s.guard.TryAcquire(JobRefresh)
	if !ok {
		return nil, apperrors.LockedError(nil, "token refresh already running")
	}
	defer release()

	startedAt := time.Now().UTC()
	correlationID := uuid.NewString()

	tokens, err := s.tokens.ListEnabledTokens(ctx)
	if err != nil {
		s.recordRun(ctx, JobRefresh, snapshotstore.RunFailed, correlationID, err.Error(), startedAt)
		return nil, fmt.Errorf("failed to list enabled tokens: %w", err)
	}
	if len(tokens) == 0 {
		s.recordRun(ctx, JobRefresh, snapshotstore.RunCompleted, correlationID, "no enabled tokens", startedAt)
		return &RunResult{
			JobType:       JobRefresh,
			Status:        snapshotstore.RunCompleted,
			CorrelationID: correlationID,
			Message:       "no enabled tokens",
		}, nil
	}

	markets := s.fetchMarketBatches(ctx, tokens)

	recordedAt := time.Now().UTC()
	var (
		metricRows []*snapshotstore.TokenMetricDao
		aggregate  = snapshotstore.EcosystemMetricDao{RecordedAt: recordedAt}
		succeeded  int
		failed     int
	)
	for _, tok := range tokens {
		// A token the source returned nothing for is a failed fetch; it
		// keeps its previous registry fields and gets no snapshot row.
		market, ok := markets[tok.ContractAddress]
		if !ok {
			failed++
			continue
		}

		lowLiquidity := token.ClassifyLowLiquidity(market.LiquidityUSD, s.opts.LiquidityThreshold)
		data := token.MarketData{
			Price:        market.PriceUSD,
			LiquidityUSD: market.LiquidityUSD,
			Volume24h:    market.Volume24h,
			MarketCap:    market.MarketCap,
		}
		// A registry write failure counts against the run like a failed
		// fetch; the snapshot tables only record fully applied tokens.
		if err := s.tokens.UpdateMarketData(ctx, tok.ContractAddress, data, lowLiquidity); err != nil {
			s.logger.Error("failed to update token market data",
				zap.String("contract_address", tok.ContractAddress),
				zap.Error(err))
			failed++
			continue
		}
		succeeded++

		metricRows = append(metricRows, &snapshotstore.TokenMetricDao{
			ContractAddress: tok.ContractAddress,
			Price:           market.PriceUSD,
			LiquidityUSD:    market.LiquidityUSD,
			Volume24h:       market.Volume24h,
			MarketCap:       market.MarketCap,
			RecordedAt:      recordedAt,
		})

		aggregate.TokenCount++
		mcap := deref(market.MarketCap)
		vol := deref(market.Volume24h)
		aggregate.TotalMarketCap += mcap
		aggregate.TotalVolume24h += vol
		if !tok.Hidden && !lowLiquidity {
			aggregate.VisibleCount++
			aggregate.VisibleMarketCap += mcap
			aggregate.VisibleVolume24h += vol
		}
	}

	if err := s.snapshots.InsertTokenMetrics(ctx, metricRows); err != nil {
		s.recordRun(ctx, JobRefresh, snapshotstore.RunFailed, correlationID, err.Error(), startedAt)
		return nil, err
	}

	// The aggregate row is written only after every per-token outcome is
	// known, so it never sums a partially collected set.
	if succeeded > 0 {
		if err := s.snapshots.InsertEcosystemMetric(ctx, &aggregate); err != nil {
			s.recordRun(ctx, JobRefresh, snapshotstore.RunFailed, correlationID, err.Error(), startedAt)
			return nil, err
		}
	}

	status := batchStatus(succeeded, failed)
	message := fmt.Sprintf("%d refreshed, %d failed", succeeded, failed)
	s.recordRun(ctx, JobRefresh, status, correlationID, message, startedAt)

	s.logger.Info("token refresh finished",
		zap.String("correlation_id", correlationID),
		zap.String("status", status),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed))

	result := &RunResult{
		JobType:       JobRefresh,
		Status:        status,
		CorrelationID: correlationID,
		Succeeded:     succeeded,
		Failed:        failed,
		Message:       message,
	}
	if status == snapshotstore.RunFailed {
		return result, apperrors.DependencyError(nil, "no tokens were refreshed")
	}
	return result, nil
}

// fetchMarketBatches issues batched market lookups concurrently and
// merges the per-token results. A failed batch simply contributes no
// entries; its tokens show up as failed fetches in the caller.
func (s *syncService) fetchMarketBatches(ctx context.Context, tokens []*token.Token) map[string]dexscreener.TokenMarket {
	var (
		mu      stdsync.Mutex
		markets = make(map[string]dexscreener.TokenMarket)
	)

	pool := pond.NewPool(s.opts.FetchConcurrency)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)

	for _, batch := range chunkAddresses(tokens, dexscreener.MaxBatchSize) {
		batch := batch
		group.Submit(func() {
			fetched, err := s.dex.FetchMarkets(group.Context(), batch)
			if err != nil {
				metrics.UpstreamErrors.WithLabelValues("dexscreener").Inc()
				s.logger.Warn("market batch fetch failed",
					zap.Int("batch_size", len(batch)),
					zap.Error(err))
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for addr, market := range fetched {
				markets[addr] = market
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("market fetch group encountered error", zap.Error(err))
	}
	return markets
}

func chunkAddresses(tokens []*token.Token, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := make([]string, 0, end-start)
		for _, tok := range tokens[start:end] {
			batch = append(batch, tok.ContractAddress)
		}
		batches = append(batches, batch)
	}
	return batches
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
