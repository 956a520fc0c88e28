// Package metrics holds the prometheus collectors for the cache and truth-score pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results
const (
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultError    = "error"
	ResultDisabled = "disabled"
)

var (
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nomadstay_cache_requests_total",
			Help: "Read-through cache lookups by domain and result",
		},
		[]string{"domain", "result"},
	)

	CacheStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nomadstay_cache_store_errors_total",
			Help: "Backing store errors swallowed by the cache policy layer",
		},
		[]string{"operation"},
	)

	TruthScoreRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nomadstay_truthscore_recompute_total",
			Help: "Truth score recomputations by result",
		},
		[]string{"result"},
	)

	TruthScoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nomadstay_truthscore_recompute_duration_seconds",
			Help:    "Duration of truth score recomputations",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nomadstay_jobs_dropped_total",
			Help: "Background tasks that could not be scheduled",
		},
		[]string{"task"},
	)
)

// RecordCacheLookup records one read-through lookup
func RecordCacheLookup(domain, result string) {
	CacheRequests.WithLabelValues(domain, result).Inc()
}

// RecordStoreError records a swallowed backing store error
func RecordStoreError(op string) {
	CacheStoreErrors.WithLabelValues(op).Inc()
}

// RecordRecompute records the outcome of one truth score recomputation
func RecordRecompute(start time.Time, err error) {
	TruthScoreDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		TruthScoreRecomputes.WithLabelValues("error").Inc()
		return
	}
	TruthScoreRecomputes.WithLabelValues("ok").Inc()
}
