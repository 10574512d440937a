package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2025, 6, n, 0, 0, 0, 0, time.UTC)
}

func TestAnnualizeTrailing_WindowBoundaries(t *testing.T) {
	revenues := []float64{10, 10, 10, 10, 10, 10, 10, 70, 10, 10}
	points := make([]RevenuePoint, 0, len(revenues))
	for i, rev := range revenues {
		points = append(points, RevenuePoint{Day: day(i + 1), Revenue: rev})
	}

	out := AnnualizeTrailing(points)
	require.Len(t, out, 10)

	// Days 1-6: no full window yet, annualized must stay nil.
	for i := 0; i < 6; i++ {
		require.Nilf(t, out[i].Annualized, "day %d should have nil annualized value", i+1)
	}

	// Day 7: first full window, avg 10 -> 10*365.
	require.NotNil(t, out[6].Annualized)
	require.Equal(t, int64(3650), *out[6].Annualized)

	// Day 8: window covers days 2-8, avg (10*6+70)/7 = 20 -> 7300.
	require.NotNil(t, out[7].Annualized)
	require.Equal(t, int64(7300), *out[7].Annualized)
}

func TestAnnualizeTrailing_SortsInputAscending(t *testing.T) {
	// Same series as above delivered newest-first; results must not change.
	points := []RevenuePoint{}
	revenues := []float64{10, 10, 10, 10, 10, 10, 10, 70, 10, 10}
	for i := len(revenues) - 1; i >= 0; i-- {
		points = append(points, RevenuePoint{Day: day(i + 1), Revenue: revenues[i]})
	}

	out := AnnualizeTrailing(points)
	require.Len(t, out, 10)
	require.True(t, out[0].Day.Before(out[1].Day), "output should be ascending by day")
	require.Nil(t, out[5].Annualized)
	require.NotNil(t, out[6].Annualized)
	require.Equal(t, int64(3650), *out[6].Annualized)
}

func TestAnnualizeTrailing_RoundsToNearestInteger(t *testing.T) {
	points := make([]RevenuePoint, 0, 7)
	for i := 0; i < 7; i++ {
		points = append(points, RevenuePoint{Day: day(i + 1), Revenue: 1})
	}
	// avg = 1, annualized = 365
	out := AnnualizeTrailing(points)
	require.Equal(t, int64(365), *out[6].Annualized)

	// avg = 10.5/7 = 1.5 on the last day -> 547.5 rounds to 548
	points[6].Revenue = 4.5
	out = AnnualizeTrailing(points)
	require.Equal(t, int64(548), *out[6].Annualized)
}

func TestAnnualizeTrailing_Empty(t *testing.T) {
	out := AnnualizeTrailing(nil)
	require.Empty(t, out)
}
