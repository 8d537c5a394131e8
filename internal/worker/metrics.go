package worker

import (
	"net/http"

	"github.com/dunamismax/photoresize/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "photoresize"

type metrics struct {
	registry *prometheus.Registry

	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	activeJobs  prometheus.Gauge
	failures    *prometheus.CounterVec

	outputsTotal *prometheus.CounterVec
	outputBytes  *prometheus.HistogramVec

	pixelsProcessedTotal prometheus.Counter
	bytesSavedTotal      prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	worker := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: metricsNamespace, Subsystem: "worker", Name: name, Help: help}
	}
	usage := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: metricsNamespace, Subsystem: "usage", Name: name, Help: help}
	}

	return &metrics{
		registry: registry,
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts(worker("jobs_total", "Edit jobs by source type and final status.")),
			[]string{"source_type", "status"},
		),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Wall time spent on each edit job.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 180},
		}, []string{"source_type", "status"}),
		activeJobs: factory.NewGauge(prometheus.GaugeOpts(worker("active_jobs", "Edit jobs currently running."))),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts(worker("failures_total", "Failed edit jobs by failure kind.")),
			[]string{"kind"},
		),
		outputsTotal: factory.NewCounterVec(
			prometheus.CounterOpts(worker("outputs_total", "Encoded outputs by recipe action and format.")),
			[]string{"action", "format"},
		),
		outputBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "worker",
			Name:      "output_bytes",
			Help:      "Encoded output size by format.",
			Buckets:   prometheus.ExponentialBuckets(4<<10, 4, 8),
		}, []string{"format"}),
		pixelsProcessedTotal: factory.NewCounter(usage("pixels_processed_total", "Output pixels rendered by succeeded jobs.")),
		bytesSavedTotal:      factory.NewCounter(usage("bytes_saved_total", "Bytes saved against the source by succeeded jobs.")),
		computeTimeMSTotal:   factory.NewCounter(usage("compute_time_ms_total", "Compute milliseconds spent by succeeded jobs.")),
	}
}

func (m *metrics) observeOutputs(outputs []pipeline.Output) {
	for _, out := range outputs {
		m.outputsTotal.WithLabelValues(out.Action, out.Format).Inc()
		m.outputBytes.WithLabelValues(out.Format).Observe(float64(out.Bytes))
	}
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
