package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kpi"

// HTTPServerMetrics owns the API registry; workflow collectors register into
// it through Registerer.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	m := &HTTPServerMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Workflow API requests by route and status.",
		}, []string{"service", "method", "path", "status"}),
		// Submissions with ?wait=true block for the whole scoring run.
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Workflow API request latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"service", "method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Workflow API requests being served.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
	}
	m.registry.MustRegister(m.requests, m.latency, m.inFlight)
	return m
}

// Registerer lets other collectors share the /metrics endpoint.
func (m *HTTPServerMetrics) Registerer() prometheus.Registerer {
	return m.registry
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := normalizePath(r.URL.Path)
		m.requests.WithLabelValues(service, r.Method, path, strconv.Itoa(rec.statusCode)).Inc()
		m.latency.WithLabelValues(service, r.Method, path).Observe(time.Since(started).Seconds())
	})
}

var (
	documentPath = regexp.MustCompile(`^/v1/workflow/documents/[^/]+(/retry|/primary)?$`)
	historyPath  = regexp.MustCompile(`^/v1/workflow/history/[0-9]+$`)
)

// normalizePath keeps label cardinality bounded by collapsing ids.
func normalizePath(path string) string {
	switch {
	case documentPath.MatchString(path):
		if m := documentPath.FindStringSubmatch(path); m[1] != "" {
			return "/v1/workflow/documents/{local_id}" + m[1]
		}
		return "/v1/workflow/documents/{local_id}"
	case historyPath.MatchString(path):
		return "/v1/workflow/history/{evaluation_id}"
	default:
		return path
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
