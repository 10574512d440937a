package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atareh/lightvision/internal/metrics"
	apperrors "github.com/atareh/lightvision/pkg/app/errors"
	"github.com/atareh/lightvision/pkg/snapshotstore"
)

// RunAssetPrice records one price snapshot for the tracked external
// asset. This is a single-entity job: an upstream failure is fatal for
// the whole run, there is no per-item recovery.
func (s *syncService) RunAssetPrice(ctx context.Context) (*RunResult, error) {
	release, ok := s.guard.TryAcquire(JobAssetPrice)
	if !ok {
		return nil, apperrors.LockedError(nil, "asset price sync already running")
	}
	defer release()

	startedAt := time.Now().UTC()
	correlationID := uuid.NewString()

	market, err := s.asset.FetchAssetMarket(ctx, s.opts.AssetID)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("coingecko").Inc()
		s.recordRun(ctx, JobAssetPrice, snapshotstore.RunFailed, correlationID, err.Error(), startedAt)
		return nil, apperrors.DependencyError(err, "failed to fetch asset market data")
	}

	row := &snapshotstore.AssetPriceDao{
		AssetID:           s.opts.AssetID,
		Price:             market.CurrentPrice,
		MarketCap:         market.MarketCap,
		FullyDilutedValue: market.FullyDilutedValuation,
		Volume24h:         market.TotalVolume,
		RecordedAt:        time.Now().UTC(),
	}
	if market.PriceChange24hPct != nil {
		row.Change24hPct = *market.PriceChange24hPct
	}

	// Volume change is derived from the previous snapshot since the
	// aggregator only reports price change.
	prior, err := s.snapshots.LatestAssetPrice(ctx, s.opts.AssetID)
	switch {
	case errors.Is(err, snapshotstore.ErrNoSnapshots):
		// First ever snapshot, no baseline.
	case err != nil:
		s.logger.Warn("failed to load prior asset price snapshot", zap.Error(err))
	case prior.Volume24h > 0:
		row.VolumeChange24hPct = (row.Volume24h - prior.Volume24h) / prior.Volume24h * 100
	}

	if err := s.snapshots.InsertAssetPrice(ctx, row); err != nil {
		s.recordRun(ctx, JobAssetPrice, snapshotstore.RunFailed, correlationID, err.Error(), startedAt)
		return nil, err
	}

	message := fmt.Sprintf("recorded price %.6f for %s", row.Price, s.opts.AssetID)
	s.recordRun(ctx, JobAssetPrice, snapshotstore.RunCompleted, correlationID, message, startedAt)

	s.logger.Info("asset price sync finished",
		zap.String("correlation_id", correlationID),
		zap.String("asset_id", s.opts.AssetID),
		zap.Float64("price", row.Price))

	return &RunResult{
		JobType:       JobAssetPrice,
		Status:        snapshotstore.RunCompleted,
		CorrelationID: correlationID,
		Succeeded:     1,
		Message:       message,
	}, nil
}
