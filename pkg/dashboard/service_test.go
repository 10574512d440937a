package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atareh/lightvision/pkg/snapshotstore"
)

type fakeStore struct {
	ecosystem []*snapshotstore.EcosystemMetricDao
	tvl       []*snapshotstore.ProtocolTvlDao
	revenue   []*snapshotstore.RevenueDao
	err       error
}

func (f *fakeStore) ListEcosystemMetrics(ctx context.Context) ([]*snapshotstore.EcosystemMetricDao, error) {
	return f.ecosystem, f.err
}

func (f *fakeStore) ListProtocolTvl(ctx context.Context) ([]*snapshotstore.ProtocolTvlDao, error) {
	return f.tvl, f.err
}

func (f *fakeStore) ListRevenue(ctx context.Context, limit int) ([]*snapshotstore.RevenueDao, error) {
	if limit > 0 && limit < len(f.revenue) {
		return f.revenue[:limit], f.err
	}
	return f.revenue, f.err
}

func ecoRow(recordedAt time.Time, mcap float64) *snapshotstore.EcosystemMetricDao {
	return &snapshotstore.EcosystemMetricDao{
		TotalMarketCap:   mcap,
		TotalVolume24h:   mcap / 10,
		VisibleMarketCap: mcap * 0.8,
		VisibleVolume24h: mcap / 20,
		TokenCount:       12,
		VisibleCount:     10,
		RecordedAt:       recordedAt,
	}
}

func TestGetMetrics_NearestComparison(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{ecosystem: []*snapshotstore.EcosystemMetricDao{
		ecoRow(now, 4000),
		ecoRow(now.Add(-23*time.Hour), 3000),
		ecoRow(now.Add(-25*time.Hour), 2000),
		ecoRow(now.Add(-48*time.Hour), 1000),
	}}

	svc := NewService(store, zap.NewNop())
	metrics, err := svc.GetMetrics(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4000.0, metrics.TotalMarketCap)
	require.Equal(t, 12, metrics.TokenCount)

	// Comparison row is the one at T-23h, so the delta is 4000-3000.
	require.NotNil(t, metrics.Deltas.TotalMarketCap)
	require.Equal(t, 1000.0, *metrics.Deltas.TotalMarketCap)
}

func TestGetMetrics_SingleSnapshotHasNilDeltas(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{ecosystem: []*snapshotstore.EcosystemMetricDao{ecoRow(now, 4000)}}

	svc := NewService(store, zap.NewNop())
	metrics, err := svc.GetMetrics(context.Background())
	require.NoError(t, err)

	require.Nil(t, metrics.Deltas.TotalMarketCap)
	require.Nil(t, metrics.Deltas.TotalVolume24h)
	require.Nil(t, metrics.Deltas.VisibleMarketCap)
	require.Nil(t, metrics.Deltas.VisibleVolume24h)
}

func TestGetMetrics_NoSnapshots(t *testing.T) {
	svc := NewService(&fakeStore{}, zap.NewNop())
	_, err := svc.GetMetrics(context.Background())
	require.ErrorIs(t, err, snapshotstore.ErrNoSnapshots)
}

func TestGetTvl(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{tvl: []*snapshotstore.ProtocolTvlDao{
		{Day: day2, Protocol: "felix", Tvl: 700, TotalTvl: 1200},
		{Day: day2, Protocol: "hyperlend", Tvl: 500, TotalTvl: 1200},
		{Day: day1, Protocol: "felix", Tvl: 600, TotalTvl: 600},
	}}

	svc := NewService(store, zap.NewNop())
	report, err := svc.GetTvl(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1200.0, report.CurrentTvl)
	require.Equal(t, 600.0, report.PreviousDayTvl)
	require.Equal(t, 600.0, report.DailyChange)
	require.Equal(t, "felix", report.Protocols[0].Protocol)
}

func TestGetRevenue(t *testing.T) {
	annualized := int64(3650)
	store := &fakeStore{revenue: []*snapshotstore.RevenueDao{
		{Day: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Revenue: 10},
		{Day: time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC), Revenue: 10, AnnualizedRevenue: &annualized},
	}}

	svc := NewService(store, zap.NewNop())
	points, err := svc.GetRevenue(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, "2025-06-01", points[0].Day)
	require.Nil(t, points[0].AnnualizedRevenue)
	require.Equal(t, int64(3650), *points[1].AnnualizedRevenue)
}

func TestGetRevenue_StoreError(t *testing.T) {
	svc := NewService(&fakeStore{err: errors.New("db down")}, zap.NewNop())
	_, err := svc.GetRevenue(context.Background(), 0)
	require.Error(t, err)
}
