// Package metrics holds the Prometheus collectors for the vulnerability cache and the OSV client.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics represents the collection of all Prometheus metrics
type Metrics struct {
	CacheLookups       *prometheus.CounterVec
	CacheWaitTimeouts  prometheus.Counter
	CacheEntries       prometheus.GaugeFunc
	RefreshesStarted   prometheus.Counter
	FetchFailures      prometheus.Counter
	OSVRequests        *prometheus.CounterVec
	OSVBatchSize       prometheus.Histogram
	OSVRequestDuration prometheus.Histogram
	ScansCompleted     *prometheus.CounterVec

	cacheSize atomic.Pointer[func() int]
}

// Cache lookup outcomes used as the "result" label of CacheLookups
const (
	LookupHit   = "hit"
	LookupStale = "stale"
	LookupMiss  = "miss"
	LookupWait  = "wait"
)

// NewMetrics creates all collectors and registers them with reg.
// A nil reg leaves the collectors unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulncache_lookups_total",
			Help: "Cache lookups by outcome",
		},
		[]string{"result"},
	)

	m.CacheWaitTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vulncache_wait_timeouts_total",
			Help: "Waits on another caller's fetch that ended without data",
		},
	)

	m.CacheEntries = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vulncache_entries",
			Help: "Number of entries held in the cache",
		},
		func() float64 {
			if size := m.cacheSize.Load(); size != nil {
				return float64((*size)())
			}
			return 0
		},
	)

	m.RefreshesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vulncache_refreshes_total",
			Help: "Stale entries claimed for refresh",
		},
	)

	m.FetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vulncache_fetch_failures_total",
			Help: "Batched fetches that failed and released their claims",
		},
	)

	m.OSVRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osv_querybatch_requests_total",
			Help: "OSV querybatch calls by outcome",
		},
		[]string{"status"},
	)

	m.OSVBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osv_querybatch_size",
			Help:    "Number of queries per OSV querybatch call",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		},
	)

	m.OSVRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osv_querybatch_duration_seconds",
			Help:    "Duration of OSV querybatch calls including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.ScansCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dependency_scans_total",
			Help: "Scheduled dependency scans by outcome",
		},
		[]string{"status"},
	)

	if reg != nil {
		reg.MustRegister(
			m.CacheLookups,
			m.CacheWaitTimeouts,
			m.CacheEntries,
			m.RefreshesStarted,
			m.FetchFailures,
			m.OSVRequests,
			m.OSVBatchSize,
			m.OSVRequestDuration,
			m.ScansCompleted,
		)
	}

	return m
}

// ObserveCacheSize makes the vulncache_entries gauge read size on every scrape
func (m *Metrics) ObserveCacheSize(size func() int) {
	m.cacheSize.Store(&size)
}
