// Package analytics holds the pure transforms behind the dashboard's
// aggregate figures: revenue windowing, protocol TVL grouping and the
// 24h comparison lookup. Everything here is side-effect free so the sync
// jobs and read services can share it.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	revenueWindowDays = 7
	daysPerYear       = 365
)

// RevenuePoint is one day of raw revenue from the analytics source.
type RevenuePoint struct {
	Day     time.Time
	Revenue float64
}

// AnnualizedPoint is a revenue day enriched with the trailing-window
// annualized figure. Annualized is nil until a full 7-day window exists.
type AnnualizedPoint struct {
	Day        time.Time
	Revenue    float64
	Annualized *int64
}

// AnnualizeTrailing computes, for each day, the 7-day trailing simple
// moving average of revenue annualized to a whole-dollar figure
// (average * 365, rounded to nearest integer). The input is sorted
// ascending by day before windowing; days without a full window get a nil
// annualized value, never a partial average.
func AnnualizeTrailing(points []RevenuePoint) []AnnualizedPoint {
	sorted := make([]RevenuePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Day.Before(sorted[j].Day)
	})

	out := make([]AnnualizedPoint, 0, len(sorted))
	for i, p := range sorted {
		ap := AnnualizedPoint{Day: p.Day, Revenue: p.Revenue}
		if i >= revenueWindowDays-1 {
			sum := decimal.Zero
			for _, w := range sorted[i-revenueWindowDays+1 : i+1] {
				sum = sum.Add(decimal.NewFromFloat(w.Revenue))
			}
			annualized := sum.
				Div(decimal.NewFromInt(revenueWindowDays)).
				Mul(decimal.NewFromInt(daysPerYear)).
				Round(0).
				IntPart()
			ap.Annualized = &annualized
		}
		out = append(out, ap)
	}
	return out
}
