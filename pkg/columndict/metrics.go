package columndict

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	phaseValues    = "values"
	phaseSortIndex = "sort_index"
)

type loaderMetrics struct {
	loadDuration   prometheus.Histogram
	valuesLoaded   prometheus.Counter
	chunksAppended prometheus.Counter
	sortIndexLoads prometheus.Counter
	loadFailures   *prometheus.CounterVec
}

func newLoaderMetrics(reg prometheus.Registerer) *loaderMetrics {
	return &loaderMetrics{
		loadDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "mica",
			Name:      "dictionary_load_duration_seconds",
			Help:      "Time spent loading dictionary values into memory.",
			Buckets:   prometheus.DefBuckets,
		}),
		valuesLoaded: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mica",
			Name:      "dictionary_values_loaded_total",
			Help:      "Total count of dictionary values loaded into memory.",
		}),
		chunksAppended: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mica",
			Name:      "dictionary_chunks_appended_total",
			Help:      "Total count of chunk containers appended to in-memory dictionaries.",
		}),
		sortIndexLoads: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "mica",
			Name:      "dictionary_sort_index_loads_total",
			Help:      "Total count of sort index refreshes.",
		}),
		loadFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "mica",
			Name:      "dictionary_load_failures_total",
			Help:      "Total count of failed dictionary loads.",
		}, []string{"phase"}),
	}
}
