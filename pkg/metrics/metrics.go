// Package metrics exposes Prometheus collectors for AcornDB's internal
// subsystems: cache occupancy, index sizes, pipeline throughput, replication
// fan-out, and TTL sweeps. Collecting and registering a metrics endpoint over
// HTTP is the embedding application's concern; this package only owns the
// collectors themselves.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Cache metrics
	CacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "acorndb_cache_entries",
			Help: "Current number of entries held in a collection's cache",
		},
		[]string{"collection"},
	)

	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
		[]string{"collection"},
	)

	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_cache_hits_total",
			Help: "Total number of cache reads that hit",
		},
		[]string{"collection"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_cache_misses_total",
			Help: "Total number of cache reads that missed and fell through to the backend",
		},
		[]string{"collection"},
	)

	// Document operation metrics
	PutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_puts_total",
			Help: "Total number of successful Put operations",
		},
		[]string{"collection"},
	)

	DeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_deletes_total",
			Help: "Total number of successful Delete operations",
		},
		[]string{"collection"},
	)

	TTLExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_ttl_expired_total",
			Help: "Total number of records removed by the TTL sweep",
		},
		[]string{"collection"},
	)

	// Index metrics
	IndexEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "acorndb_index_entries",
			Help: "Number of entries currently tracked by an index",
		},
		[]string{"collection", "index"},
	)

	// Pipeline metrics
	PipelineBytesIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_pipeline_bytes_in_total",
			Help: "Total bytes fed into a Root on write and read",
		},
		[]string{"collection", "root"},
	)

	PipelineBytesOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_pipeline_bytes_out_total",
			Help: "Total bytes produced by a Root on write and read",
		},
		[]string{"collection", "root"},
	)

	PipelineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_pipeline_errors_total",
			Help: "Total number of Root execution errors",
		},
		[]string{"collection", "root"},
	)

	// Query planner metrics
	QueryPlanCost = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acorndb_query_plan_cost",
			Help:    "Estimated cost of query plans built by the planner",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "strategy"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acorndb_query_duration_seconds",
			Help:    "Wall-clock duration of query execution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "strategy"},
	)

	// Replication metrics
	ReplicationPushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_replication_push_total",
			Help: "Total number of records pushed to a peer",
		},
		[]string{"collection", "peer", "status"},
	)

	ReplicationApplyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_replication_apply_total",
			Help: "Total number of inbound records applied",
		},
		[]string{"collection"},
	)

	ReplicationDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_replication_dropped_total",
			Help: "Total number of inbound records dropped by loop prevention or peer mode",
		},
		[]string{"collection", "reason"},
	)

	ConflictsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorndb_conflicts_resolved_total",
			Help: "Total number of conflicts resolved by the Conflict Judge",
		},
		[]string{"collection", "winner"},
	)
)

func init() {
	prometheus.MustRegister(
		CacheSize,
		CacheEvictionsTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		PutsTotal,
		DeletesTotal,
		TTLExpiredTotal,
		IndexEntries,
		PipelineBytesIn,
		PipelineBytesOut,
		PipelineErrorsTotal,
		QueryPlanCost,
		QueryDuration,
		ReplicationPushTotal,
		ReplicationApplyTotal,
		ReplicationDroppedTotal,
		ConflictsResolvedTotal,
	)
}

// Timer is a helper for timing operations and observing them into a histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
