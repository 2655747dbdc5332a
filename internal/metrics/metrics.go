// Package metrics provides Prometheus instrumentation for collection runs,
// change detection and the web UI.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecordsCollected counts chart records fetched, partitioned by store.
	RecordsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartpulse_records_collected_total",
		Help: "Chart records fetched from upstream stores",
	}, []string{"store"})

	// ChartFetchFailures counts charts that could not be fetched.
	ChartFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartpulse_chart_fetch_failures_total",
		Help: "Charts whose fetch failed and yielded no records",
	}, []string{"store"})

	// NewsCollected counts news items kept after the time window filter.
	NewsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chartpulse_news_collected_total",
		Help: "Industry news items collected",
	})

	// ChangesDetected counts classified changes by type.
	ChangesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartpulse_changes_detected_total",
		Help: "Changes detected between consecutive snapshots",
	}, []string{"change_type"})

	// SkippedRecords counts records excluded from comparison.
	SkippedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartpulse_skipped_records_total",
		Help: "Records excluded from comparison",
	}, []string{"reason"})

	// StepDuration tracks pipeline step duration.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chartpulse_step_duration_seconds",
		Help:    "Pipeline step duration in seconds",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"pipeline", "step", "status"})

	// LastSnapshotRecords is the record count of the most recent saved snapshot.
	LastSnapshotRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chartpulse_last_snapshot_records",
		Help: "Number of records in the most recently saved snapshot",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartpulse_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chartpulse_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveStep records how long a pipeline step took.
func ObserveStep(pipeline, step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StepDuration.WithLabelValues(pipeline, step, status).Observe(time.Since(start).Seconds())
}

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

		// Route pattern keeps the label set bounded (/day/{date}, not every date).
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
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
