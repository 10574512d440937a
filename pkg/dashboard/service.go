// Package dashboard implements the read API serving the web dashboard:
// latest ecosystem metrics with 24h deltas, protocol TVL and the daily
// revenue series.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atareh/lightvision/pkg/analytics"
	"github.com/atareh/lightvision/pkg/snapshotstore"
)

// Store is the narrow snapshot read interface for the dashboard.
type Store interface {
	ListEcosystemMetrics(ctx context.Context) ([]*snapshotstore.EcosystemMetricDao, error)
	ListProtocolTvl(ctx context.Context) ([]*snapshotstore.ProtocolTvlDao, error)
	ListRevenue(ctx context.Context, limit int) ([]*snapshotstore.RevenueDao, error)
}

// Metrics is the ecosystem metrics payload. Delta fields are nil when no
// comparison snapshot exists, which is distinct from a zero change.
type Metrics struct {
	TotalMarketCap   float64                   `json:"total_market_cap"`
	TotalVolume24h   float64                   `json:"total_volume_24h"`
	VisibleMarketCap float64                   `json:"visible_market_cap"`
	VisibleVolume24h float64                   `json:"visible_volume_24h"`
	TokenCount       int                       `json:"token_count"`
	VisibleCount     int                       `json:"visible_count"`
	RecordedAt       time.Time                 `json:"recorded_at"`
	Deltas           analytics.EcosystemDeltas `json:"deltas_24h"`
}

// RevenuePoint is one day of the revenue series.
type RevenuePoint struct {
	Day               string  `json:"day"`
	Revenue           float64 `json:"revenue"`
	AnnualizedRevenue *int64  `json:"annualized_revenue"`
}

// Service defines the dashboard read operations
type Service interface {
	GetMetrics(ctx context.Context) (*Metrics, error)
	GetTvl(ctx context.Context) (*analytics.TvlReport, error)
	GetRevenue(ctx context.Context, limit int) ([]RevenuePoint, error)
}

type dashboardService struct {
	store  Store
	logger *zap.Logger
}

// NewService creates the dashboard read service
func NewService(store Store, logger *zap.Logger) Service {
	return &dashboardService{store: store, logger: logger}
}

// GetMetrics returns the most recent ecosystem snapshot together with
// deltas against the row recorded closest to 24 hours earlier.
func (s *dashboardService) GetMetrics(ctx context.Context) (*Metrics, error) {
	rows, err := s.store.ListEcosystemMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ecosystem metrics: %w", err)
	}
	if len(rows) == 0 {
		return nil, snapshotstore.ErrNoSnapshots
	}

	// Rows come back newest first; every row except the latest is a
	// comparison candidate, including rows sharing its timestamp.
	latestRow := rows[0]
	latest := toSnapshot(latestRow)
	candidates := make([]analytics.EcosystemSnapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		candidates = append(candidates, toSnapshot(row))
	}

	var deltas analytics.EcosystemDeltas
	if comparison, ok := analytics.NearestComparison(latest, candidates); ok {
		deltas = analytics.ComputeDeltas(latest, comparison)
	}
	return &Metrics{
		TotalMarketCap:   latestRow.TotalMarketCap,
		TotalVolume24h:   latestRow.TotalVolume24h,
		VisibleMarketCap: latestRow.VisibleMarketCap,
		VisibleVolume24h: latestRow.VisibleVolume24h,
		TokenCount:       latestRow.TokenCount,
		VisibleCount:     latestRow.VisibleCount,
		RecordedAt:       latestRow.RecordedAt,
		Deltas:           deltas,
	}, nil
}

// GetTvl groups all protocol TVL rows by day and reports the latest day
// against the prior one.
func (s *dashboardService) GetTvl(ctx context.Context) (*analytics.TvlReport, error) {
	rows, err := s.store.ListProtocolTvl(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load protocol tvl: %w", err)
	}

	points := make([]analytics.ProtocolTvl, 0, len(rows))
	for _, row := range rows {
		points = append(points, analytics.ProtocolTvl{
			Day:      row.Day,
			Protocol: row.Protocol,
			Tvl:      row.Tvl,
		})
	}
	report := analytics.BuildTvlReport(points)
	return &report, nil
}

// GetRevenue returns the revenue series ascending by day.
func (s *dashboardService) GetRevenue(ctx context.Context, limit int) ([]RevenuePoint, error) {
	rows, err := s.store.ListRevenue(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue: %w", err)
	}

	points := make([]RevenuePoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, RevenuePoint{
			Day:               row.Day.Format("2006-01-02"),
			Revenue:           row.Revenue,
			AnnualizedRevenue: row.AnnualizedRevenue,
		})
	}
	return points, nil
}

func toSnapshot(row *snapshotstore.EcosystemMetricDao) analytics.EcosystemSnapshot {
	return analytics.EcosystemSnapshot{
		TotalMarketCap:   row.TotalMarketCap,
		TotalVolume24h:   row.TotalVolume24h,
		VisibleMarketCap: row.VisibleMarketCap,
		VisibleVolume24h: row.VisibleVolume24h,
		RecordedAt:       row.RecordedAt,
	}
}
