// Package metrics provides Prometheus instrumentation for the indexer services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsPublished counts ledger events published by the emitter, by event type
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lt_indexer_events_published_total",
		Help: "Ledger events published to JetStream",
	}, []string{"event_type"})

	// EmitterBlock is the block of the last event published by the emitter
	EmitterBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lt_indexer_emitter_block",
		Help: "Block number of the last published event",
	})

	// EventsProcessed counts events handled by the bridge, by event type and outcome
	// (applied, duplicate, terminated, retried)
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lt_indexer_events_processed_total",
		Help: "Ledger events handled by the event bridge",
	}, []string{"event_type", "outcome"})

	// ProcessingDuration tracks the time spent applying one event
	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lt_indexer_event_processing_seconds",
		Help:    "Time spent applying one ledger event",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"event_type"})

	// ProcessedBlock is the block of the last event applied by the bridge
	ProcessedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lt_indexer_processed_block",
		Help: "Block number of the last applied event",
	})

	// HTTPRequestsTotal counts API requests by method, route and status
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lt_indexer_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks API request duration by method and route
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lt_indexer_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "route"})

	// ReconciliationRuns counts sweeper runs by result
	ReconciliationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lt_indexer_reconciliation_runs_total",
		Help: "Reconciliation sweeps by result",
	}, []string{"result"})

	// ReconciliationBalances counts balances replayed by the sweeper
	ReconciliationBalances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lt_indexer_reconciliation_balances_total",
		Help: "Balances replayed by the reconciliation sweeper",
	})

	// ReconciliationDrift counts balances whose incremental figures drift from the replay, by field
	ReconciliationDrift = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lt_indexer_reconciliation_drift_total",
		Help: "Balances whose incremental figures differ from the replay beyond tolerance",
	}, []string{"field"})

	// ReconciliationDuration tracks the duration of a full sweep
	ReconciliationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lt_indexer_reconciliation_duration_seconds",
		Help:    "Duration of a reconciliation sweep",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer returns an HTTP server exposing /metrics on addr, for processes
// that do not serve the API
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Middleware records request metrics. The route template is used as label to
// keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
