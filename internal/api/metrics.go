package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/photoresize/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry *prometheus.Registry

	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	responseBytes     *prometheus.HistogramVec
	inFlight          prometheus.Gauge
	rateLimitRejected *prometheus.CounterVec
	queueEnqueued     *prometheus.CounterVec
	exportsTotal      *prometheus.CounterVec
}

func newMetrics(sessions *store.MemorySessionStore) *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	httpLabels := []string{"method", "route", "code"}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "photoresize",
		Subsystem: "editor",
		Name:      "sessions_active",
		Help:      "Editing sessions held in memory.",
	}, func() float64 {
		return float64(sessions.Len())
	})

	return &metrics{
		registry: registry,
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoresize",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status class.",
		}, httpLabels),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "photoresize",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, httpLabels),
		responseBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "photoresize",
			Subsystem: "api",
			Name:      "response_bytes",
			Help:      "Response body size, dominated by encoded images.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		}, []string{"route"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "photoresize",
			Subsystem: "api",
			Name:      "requests_in_flight",
			Help:      "HTTP requests being served.",
		}),
		rateLimitRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoresize",
			Subsystem: "api",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the token bucket.",
		}, []string{"route"}),
		queueEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoresize",
			Subsystem: "queue",
			Name:      "jobs_enqueued_total",
			Help:      "Edit jobs handed to the queue.",
		}, []string{"queue"}),
		exportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoresize",
			Subsystem: "editor",
			Name:      "exports_total",
			Help:      "Encoded session outputs by kind and format.",
		}, []string{"kind", "format"}),
	}
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		code := statusClass(recorder.status)
		m.requestTotal.WithLabelValues(r.Method, route, code).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
		m.responseBytes.WithLabelValues(route).Observe(float64(recorder.bytes))
	})
}

// statusClass maps 404 to "4xx" so label values stay few.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

// routeLabel collapses resource ids so label cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	case strings.HasPrefix(path, "/metrics"):
		return "/metrics"
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "v1" {
		return "other"
	}
	switch parts[1] {
	case "sessions", "jobs":
	default:
		return "other"
	}
	if len(parts) >= 3 {
		parts[2] = "{id}"
	}
	if len(parts) > 4 {
		parts = parts[:4]
	}
	return "/" + strings.Join(parts, "/")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
