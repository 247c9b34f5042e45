// Package metrics defines Prometheus metrics for the screener.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Fetch outcomes.
const (
	FetchOK          = "ok"
	FetchDeadEnd     = "dead_end"
	FetchErroredOut  = "errored_out"
	FetchInterrupted = "interrupted"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screener_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_fetches_total",
			Help: "Transaction source fetches by outcome",
		},
		[]string{"outcome"},
	)

	FetchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screener_fetch_retries_total",
			Help: "Fetch attempts retried after a transient failure",
		},
	)

	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screener_fetch_duration_seconds",
			Help:    "Duration of a fetch including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_searches_total",
			Help: "Completed searches by terminal state",
		},
		[]string{"terminal"},
	)

	SearchIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screener_search_iterations",
			Help:    "Expansion layers run per search",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screener_search_duration_seconds",
			Help:    "Wall-clock duration of a search",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)

	PrunedHubs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_pruned_hubs_total",
			Help: "Hub addresses pruned from the frontier by mode",
		},
		[]string{"mode"},
	)

	ActiveSearches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screener_active_searches",
			Help: "Searches currently running",
		},
	)

	GraphNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screener_graph_nodes",
			Help: "Node count of the most recently finished search graph",
		},
	)

	GraphEdges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screener_graph_edges",
			Help: "Edge count of the most recently finished search graph",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		FetchesTotal, FetchRetries, FetchDuration,
		SearchesTotal, SearchIterations, SearchDuration,
		PrunedHubs, ActiveSearches,
		GraphNodes, GraphEdges,
	)
}
