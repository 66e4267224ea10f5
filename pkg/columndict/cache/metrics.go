package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	entries   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		hits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mica",
			Name:      "dictionary_cache_hits_total",
			Help:      "Total count of dictionary cache requests served without a load.",
		}),
		misses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mica",
			Name:      "dictionary_cache_misses_total",
			Help:      "Total count of dictionary cache requests for columns not in memory.",
		}),
		evictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mica",
			Name:      "dictionary_cache_evictions_total",
			Help:      "Total count of dictionaries evicted from the cache.",
		}),
		entries: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "mica",
			Name:      "dictionary_cache_entries",
			Help:      "Number of dictionaries currently cached.",
		}),
	}
}
