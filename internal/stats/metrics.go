package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_stats_requests_total",
			Help: "Dashboard stats reads served, by source",
		},
		[]string{"source"},
	)

	cacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_invalidations_total",
			Help: "Cache invalidation calls, by scope",
		},
		[]string{"scope"},
	)

	refreshCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_refresh_cycles_total",
			Help: "Refresh cycles, by outcome (completed or skipped)",
		},
		[]string{"outcome"},
	)

	refreshConstituencyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_refresh_constituency_duration_seconds",
			Help:    "Per-constituency snapshot recompute duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
)
