// Package metrics provides Prometheus instrumentation for the sales engine.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReportsTotal counts successful report runs, partitioned by source
	// ("request" for inline datasets, "store" for the stored snapshot).
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_reports_total",
		Help: "Total number of seller reports generated",
	}, []string{"source"})

	// ReportLatency tracks pipeline duration, excluding dataset loading.
	ReportLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sales_report_latency_seconds",
		Help:    "Report computation latency in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"source"})

	// ReportFailures counts aborted runs by reason.
	ReportFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_report_failures_total",
		Help: "Report runs aborted by invalid input",
	}, []string{"reason"})

	// PurchaseRecordsProcessed counts receipts walked by the aggregator.
	PurchaseRecordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_purchase_records_processed_total",
		Help: "Purchase records aggregated across all report runs",
	})

	// SellersRanked tracks the seller count of the most recent report.
	SellersRanked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sales_sellers_ranked",
		Help: "Number of sellers in the most recent report",
	})

	// DatasetImports counts dataset imports by outcome.
	DatasetImports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_dataset_imports_total",
		Help: "Dataset imports by result",
	}, []string{"result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sales_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// EventsPublished counts events handed to publishers, by type and sink.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_events_published_total",
		Help: "Events published by type and sink",
	}, []string{"type", "sink"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sales_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades through the middleware. A hijacked
// request is recorded as 101.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(w.ResponseWriter).Hijack()
	if err == nil {
		w.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
