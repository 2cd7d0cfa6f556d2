package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CacheLookups.WithLabelValues(LookupHit).Inc()
	m.CacheLookups.WithLabelValues(LookupHit).Inc()
	m.CacheLookups.WithLabelValues(LookupMiss).Inc()
	m.OSVBatchSize.Observe(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	lookups := map[string]float64{}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
		if f.GetName() != "vulncache_lookups_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" {
					lookups[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}

	assert.Equal(t, map[string]float64{LookupHit: 2, LookupMiss: 1}, lookups)
	assert.True(t, names["osv_querybatch_size"])
	assert.True(t, names["vulncache_entries"])

	assert.Panics(t, func() { NewMetrics(reg) }, "collectors register once per registry")
}

func TestNewMetricsUnregistered(t *testing.T) {
	m := NewMetrics(nil)
	m.FetchFailures.Inc()

	// a second unregistered set does not collide
	assert.NotPanics(t, func() { NewMetrics(nil) })
}

func TestCacheEntriesReadsSizeOnScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	entries := func() float64 {
		families, err := reg.Gather()
		require.NoError(t, err)
		for _, f := range families {
			if f.GetName() == "vulncache_entries" {
				return f.GetMetric()[0].GetGauge().GetValue()
			}
		}
		t.Fatal("vulncache_entries not gathered")
		return 0
	}

	assert.Zero(t, entries(), "no size source yet")

	size := 3
	m.ObserveCacheSize(func() int { return size })
	assert.Equal(t, float64(3), entries())

	size = 0
	assert.Zero(t, entries())
}
