package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "http_request_duration_seconds",
	Help:    "Latency of HTTP requests by route.",
	Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"path"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

var chunksIngested = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rag_chunks_ingested_total",
	Help: "Chunks embedded and stored.",
})

var documentsIngested = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rag_documents_ingested_total",
	Help: "Documents ingested.",
})

var searchCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rag_search_cache_total",
	Help: "Search cache lookups by result (hit, miss, error).",
}, []string{"result"})

var ingestJobs = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rag_ingest_jobs_total",
	Help: "Asynchronous ingestion jobs by result.",
}, []string{"result"})

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(path, status string, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(path, status).Inc()
	httpRequestDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// CaptureExecutionMetrics records how long a call to an external dependency took.
func CaptureExecutionMetrics(service string, elapsed time.Duration) {
	dependencyLatency.WithLabelValues(service).Observe(elapsed.Seconds())
}

func AddIngested(chunks int) {
	documentsIngested.Inc()
	chunksIngested.Add(float64(chunks))
}

func SearchCacheResult(result string) {
	searchCache.WithLabelValues(result).Inc()
}

func IngestJobResult(result string) {
	ingestJobs.WithLabelValues(result).Inc()
}
