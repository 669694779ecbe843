package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	translateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omopql_translate_requests_total",
			Help: "Total number of natural-language translation requests by provider.",
		},
		[]string{"provider"},
	)
	translateFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omopql_translate_failures_total",
			Help: "Total number of failed translation requests by provider.",
		},
		[]string{"provider"},
	)
	translateLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omopql_translate_latency_seconds",
			Help:    "Provider round-trip latency for translation requests.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omopql_query_executions_total",
			Help: "Total number of executed queries by result source.",
		},
		[]string{"source"},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omopql_query_rows_returned",
			Help:    "Row counts returned by executed queries.",
			Buckets: []float64{1, 10, 50, 100, 200, 500, 1000, 5000, 10000},
		},
	)
	mockFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omopql_mock_fallbacks_total",
			Help: "Total number of answers served from heuristic mock rows.",
		},
	)
	historySavesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omopql_history_saves_total",
			Help: "Total number of history records persisted.",
		},
	)
	historySaveFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omopql_history_save_failures_total",
			Help: "Total number of failed history persistence attempts.",
		},
	)
	exportBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omopql_export_bytes_total",
			Help: "Total bytes of CSV exports produced.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		translateRequestsTotal,
		translateFailuresTotal,
		translateLatencySeconds,
		queryExecutionsTotal,
		queryRowsReturned,
		mockFallbacksTotal,
		historySavesTotal,
		historySaveFailuresTotal,
		exportBytesTotal,
	)
}

func ObserveTranslate(provider string, elapsed time.Duration, err error) {
	translateRequestsTotal.WithLabelValues(provider).Inc()
	translateLatencySeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
	if err != nil {
		translateFailuresTotal.WithLabelValues(provider).Inc()
	}
}

func ObserveQueryExecution(source string, rows int) {
	queryExecutionsTotal.WithLabelValues(source).Inc()
	queryRowsReturned.Observe(float64(rows))
	if source == "mock" {
		mockFallbacksTotal.Inc()
	}
}

func ObserveHistorySave(err error) {
	if err != nil {
		historySaveFailuresTotal.Inc()
		return
	}
	historySavesTotal.Inc()
}

func ObserveExportBytes(n int) {
	if n > 0 {
		exportBytesTotal.Add(float64(n))
	}
}
