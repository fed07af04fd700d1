// Package middleware provides the observability adapters of the ranking
// engine: a Prometheus MetricsCollector and an OpenTelemetry RunObserver.
package middleware

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-vidrank/internal/ports"
)

// scoreBuckets covers the 0-100 analyzer score range.
var scoreBuckets = prometheus.LinearBuckets(0, 10, 11)

// PrometheusMetrics implements ports.MetricsCollector. Known metric names
// map onto dedicated vectors; anything else lands in the generic vectors
// labelled by metric name.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	runs             *prometheus.CounterVec
	failures         *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	analyzerDuration *prometheus.HistogramVec
	analyzerScore    *prometheus.HistogramVec

	llmLatency  *prometheus.HistogramVec
	llmRequests *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec

	operationLatency *prometheus.HistogramVec
	counters         *prometheus.CounterVec
	gauges           *prometheus.GaugeVec
	histograms       *prometheus.HistogramVec
}

// NewPrometheusMetrics registers every metric in reg. A nil reg creates a
// private registry so several instances can coexist in one process.
func NewPrometheusMetrics(reg *prometheus.Registry) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,

		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vidrank_runs_total",
			Help: "Ranking runs by final status.",
		}, []string{"status"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vidrank_failures_total",
			Help: "Non-fatal failures recorded during runs.",
		}, []string{"kind", "dimension"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidrank_stage_duration_seconds",
			Help:    "Wall time of each orchestration stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		analyzerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidrank_analyzer_duration_seconds",
			Help:    "Wall time of one analyzer invocation including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"dimension", "status"}),
		analyzerScore: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidrank_analyzer_score",
			Help:    "Scores produced by successful analyzer invocations.",
			Buckets: scoreBuckets,
		}, []string{"dimension"}),

		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_latency_seconds",
			Help:    "Latency of LLM completions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "model", "status"}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "LLM completions by outcome.",
		}, []string{"provider", "model", "status"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Tokens sent to and received from LLM providers.",
		}, []string{"provider", "model", "token_type"}),

		operationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidrank_operation_duration_seconds",
			Help:    "Latency of other operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		counters: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vidrank_events_total",
			Help: "Other counted events by metric name.",
		}, []string{"metric"}),
		gauges: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vidrank_state",
			Help: "Current values of state gauges by metric name.",
		}, []string{"metric"}),
		histograms: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidrank_observations",
			Help:    "Other observed values by metric name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"metric"}),
	}
}

// Registry returns the registry the metrics live in.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry { return pm.registry }

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
}

// RecordLatency implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	switch operation {
	case "stage":
		pm.stageDuration.WithLabelValues(label(labels, "stage")).Observe(duration.Seconds())
	case "analyzer":
		pm.analyzerDuration.WithLabelValues(label(labels, "dimension"), label(labels, "status")).
			Observe(duration.Seconds())
	default:
		pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "vidrank_runs_total":
		pm.runs.WithLabelValues(label(labels, "status")).Add(value)
	case "vidrank_failures_total":
		pm.failures.WithLabelValues(label(labels, "kind"), labels["dimension"]).Add(value)
	case "llm_requests_total":
		pm.llmRequests.WithLabelValues(llmLabels(labels, "status")...).Add(value)
	case "llm_tokens_total":
		pm.llmTokens.WithLabelValues(llmLabels(labels, "token_type")...).Add(value)
	default:
		pm.counters.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.gauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "vidrank_analyzer_score":
		pm.analyzerScore.WithLabelValues(label(labels, "dimension")).Observe(value)
	case "llm_latency_seconds":
		pm.llmLatency.WithLabelValues(llmLabels(labels, "status")...).Observe(value)
	default:
		pm.histograms.WithLabelValues(metric).Observe(value)
	}
}

// label returns labels[key], or "unknown" when it is missing or empty.
func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return "unknown"
}

func llmLabels(labels map[string]string, last string) []string {
	return []string{label(labels, "provider"), label(labels, "model"), label(labels, last)}
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
