package analytics

import "time"

// EcosystemSnapshot is one recorded ecosystem aggregate row.
type EcosystemSnapshot struct {
	TotalMarketCap   float64
	TotalVolume24h   float64
	VisibleMarketCap float64
	VisibleVolume24h float64
	RecordedAt       time.Time
}

// EcosystemDeltas carries period-over-period changes. All fields are nil
// when no comparison row exists, which is distinct from a zero change.
type EcosystemDeltas struct {
	TotalMarketCap   *float64 `json:"total_market_cap"`
	TotalVolume24h   *float64 `json:"total_volume_24h"`
	VisibleMarketCap *float64 `json:"visible_market_cap"`
	VisibleVolume24h *float64 `json:"visible_volume_24h"`
}

// NearestComparison picks the comparison row for 24h deltas: of all
// candidates, the one whose recorded timestamp is closest by absolute
// difference to exactly 24 hours before the latest row. Candidates must
// exclude the latest row itself; a distinct row that merely shares its
// timestamp is still a valid comparison. The false return means no
// candidate exists.
func NearestComparison(latest EcosystemSnapshot, candidates []EcosystemSnapshot) (EcosystemSnapshot, bool) {
	if len(candidates) == 0 {
		return EcosystemSnapshot{}, false
	}
	target := latest.RecordedAt.Add(-24 * time.Hour)

	best := candidates[0]
	bestDist := absDuration(best.RecordedAt.Sub(target))
	for _, snap := range candidates[1:] {
		dist := absDuration(snap.RecordedAt.Sub(target))
		// Ties go to the more recent row.
		if dist < bestDist || (dist == bestDist && snap.RecordedAt.After(best.RecordedAt)) {
			best = snap
			bestDist = dist
		}
	}
	return best, true
}

// ComputeDeltas returns the changes from comparison to latest. The all-nil
// "no comparison" case is the zero EcosystemDeltas value, produced by the
// caller when NearestComparison found no candidate.
func ComputeDeltas(latest, comparison EcosystemSnapshot) EcosystemDeltas {
	return EcosystemDeltas{
		TotalMarketCap:   delta(latest.TotalMarketCap, comparison.TotalMarketCap),
		TotalVolume24h:   delta(latest.TotalVolume24h, comparison.TotalVolume24h),
		VisibleMarketCap: delta(latest.VisibleMarketCap, comparison.VisibleMarketCap),
		VisibleVolume24h: delta(latest.VisibleVolume24h, comparison.VisibleVolume24h),
	}
}

func delta(latest, prior float64) *float64 {
	d := latest - prior
	return &d
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
