// Package ratelimit provides a process-local fixed-window rate limiter.
// State lives in memory only and resets on process restart.
package ratelimit

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

type window struct {
	start time.Time
	count int
}

// FixedWindow tracks per-key request counts within a rolling fixed
// window. Once a key exceeds the limit inside its window, further
// requests are rejected until the window elapses.
type FixedWindow struct {
	limit   int
	period  time.Duration
	windows *xsync.Map[string, window]
	now     func() time.Time
}

// NewFixedWindow creates a limiter allowing limit requests per period
// for each key.
func NewFixedWindow(limit int, period time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:   limit,
		period:  period,
		windows: xsync.NewMap[string, window](),
		now:     time.Now,
	}
}

// Allow records one request for key and reports whether it fits within
// the current window.
func (l *FixedWindow) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	now := l.now()
	allowed := false
	l.windows.Compute(key, func(current window, loaded bool) (window, xsync.ComputeOp) {
		if !loaded || now.Sub(current.start) > l.period {
			allowed = true
			return window{start: now, count: 1}, xsync.UpdateOp
		}
		if current.count < l.limit {
			allowed = true
			return window{start: current.start, count: current.count + 1}, xsync.UpdateOp
		}
		return current, xsync.CancelOp
	})
	return allowed
}
