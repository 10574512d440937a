// Package metrics exposes Prometheus instrumentation for the sync jobs
// and upstream data sources.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns counts sync job invocations by job type and outcome.
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lightvision",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Sync job invocations by job type and terminal status",
	}, []string{"job", "status"})

	// SyncDuration observes wall-clock job duration by job type.
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lightvision",
		Subsystem: "sync",
		Name:      "run_duration_seconds",
		Help:      "Sync job duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"job"})

	// UpstreamErrors counts failed calls to external data sources.
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lightvision",
		Subsystem: "source",
		Name:      "errors_total",
		Help:      "Failed upstream API calls by source",
	}, []string{"source"})
)
