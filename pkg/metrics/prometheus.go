package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
// Each recorder owns its registry so the launcher and tests never share global state.
type PrometheusRecorder struct {
	registry      *prometheus.Registry
	queriesTotal  *prometheus.CounterVec
	promptTokens  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	stepsTotal    *prometheus.CounterVec
	buildsTotal   *prometheus.CounterVec
	buildDuration prometheus.Histogram
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// NewPrometheusRecorder creates a new Prometheus-based metrics recorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		queriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strix_backend_queries_total",
				Help: "Total number of backend queries by provider, model, status and error type",
			},
			[]string{"provider", "model", "status", "error_type"},
		),
		promptTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strix_backend_prompt_tokens_total",
				Help: "Estimated prompt tokens sent to the backend",
			},
			[]string{"provider", "model"},
		),
		queryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strix_backend_query_duration_seconds",
				Help:    "Duration of backend queries in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model"},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strix_workflow_steps_total",
				Help: "Workflow steps executed by status",
			},
			[]string{"status"},
		),
		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strix_image_builds_total",
				Help: "Image build attempts by status",
			},
			[]string{"status"},
		),
		buildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "strix_image_build_duration_seconds",
				Help:    "Duration of image builds in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strix_runs_total",
				Help: "Finished isolated runs by exit code",
			},
			[]string{"exit_code"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "strix_run_duration_seconds",
				Help:    "Duration of isolated runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
		),
	}
}

// Gatherer exposes the recorder's registry for export.
func (p *PrometheusRecorder) Gatherer() prometheus.Gatherer {
	return p.registry
}

// ObserveQuery records metrics for a completed backend query.
func (p *PrometheusRecorder) ObserveQuery(provider, model string, promptTokens int, success bool, errorType string, duration time.Duration) {
	p.queriesTotal.WithLabelValues(provider, model, status(success), errorType).Inc()
	p.promptTokens.WithLabelValues(provider, model).Add(float64(promptTokens))
	p.queryDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// ObserveStep records one workflow step outcome.
func (p *PrometheusRecorder) ObserveStep(success bool) {
	p.stepsTotal.WithLabelValues(status(success)).Inc()
}

// ObserveBuild records one image build attempt.
func (p *PrometheusRecorder) ObserveBuild(success bool, duration time.Duration) {
	p.buildsTotal.WithLabelValues(status(success)).Inc()
	p.buildDuration.Observe(duration.Seconds())
}

// ObserveRun records a finished isolated run.
func (p *PrometheusRecorder) ObserveRun(exitCode int, duration time.Duration) {
	p.runsTotal.WithLabelValues(strconv.Itoa(exitCode)).Inc()
	p.runDuration.Observe(duration.Seconds())
}
