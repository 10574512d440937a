package analytics

import (
	"sort"
	"time"
)

// ProtocolTvl is one protocol's TVL on one day.
type ProtocolTvl struct {
	Day      time.Time
	Protocol string
	Tvl      float64
}

// ProtocolShare is a protocol's contribution to the latest day's total.
type ProtocolShare struct {
	Protocol string  `json:"protocol"`
	Tvl      float64 `json:"tvl"`
}

// TvlReport summarizes the two most recent days of protocol TVL data.
// With fewer than two distinct days, PreviousDayTvl and DailyChange are
// zero rather than an error.
type TvlReport struct {
	CurrentTvl     float64         `json:"current_tvl"`
	PreviousDayTvl float64         `json:"previous_day_tvl"`
	DailyChange    float64         `json:"daily_change"`
	Day            time.Time       `json:"day"`
	Protocols      []ProtocolShare `json:"protocols"`
}

// BuildTvlReport groups rows by day, sums per-day protocol TVLs and
// reports the latest day against the prior one. Protocols within the
// latest day are sorted descending by TVL.
func BuildTvlReport(rows []ProtocolTvl) TvlReport {
	if len(rows) == 0 {
		return TvlReport{Protocols: []ProtocolShare{}}
	}

	totals := make(map[time.Time]float64)
	byDay := make(map[time.Time][]ProtocolShare)
	for _, row := range rows {
		day := row.Day.Truncate(24 * time.Hour)
		totals[day] += row.Tvl
		byDay[day] = append(byDay[day], ProtocolShare{Protocol: row.Protocol, Tvl: row.Tvl})
	}

	days := make([]time.Time, 0, len(totals))
	for day := range totals {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	latest := days[0]
	report := TvlReport{
		CurrentTvl: totals[latest],
		Day:        latest,
		Protocols:  byDay[latest],
	}
	sort.Slice(report.Protocols, func(i, j int) bool {
		return report.Protocols[i].Tvl > report.Protocols[j].Tvl
	})

	if len(days) > 1 {
		report.PreviousDayTvl = totals[days[1]]
		report.DailyChange = report.CurrentTvl - report.PreviousDayTvl
	}
	return report
}
