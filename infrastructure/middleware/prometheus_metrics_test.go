package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	pm := NewPrometheusMetrics(nil)

	pm.RecordCounter("vidrank_runs_total", 1, map[string]string{"status": "completed"})
	pm.RecordCounter("vidrank_runs_total", 1, map[string]string{"status": "completed"})
	pm.RecordCounter("vidrank_runs_total", 1, map[string]string{"status": "degraded"})
	pm.RecordCounter("vidrank_failures_total", 1, map[string]string{"kind": "analyzer", "dimension": "density"})
	pm.RecordCounter("vidrank_failures_total", 1, map[string]string{"kind": "item_fetch"})
	pm.RecordCounter("llm_requests_total", 1, map[string]string{"provider": "openai", "model": "gpt-4o", "status": "success"})
	pm.RecordCounter("llm_tokens_total", 120, map[string]string{
		"provider": "openai", "model": "gpt-4o", "status": "success", "token_type": "input",
	})
	pm.RecordCounter("cache_hits", 3, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.runs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.runs.WithLabelValues("degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.failures.WithLabelValues("analyzer", "density")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.failures.WithLabelValues("item_fetch", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.llmRequests.WithLabelValues("openai", "gpt-4o", "success")))
	assert.Equal(t, 120.0, testutil.ToFloat64(pm.llmTokens.WithLabelValues("openai", "gpt-4o", "input")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.counters.WithLabelValues("cache_hits")))
}

func TestPrometheusMetrics_RecordLatency(t *testing.T) {
	pm := NewPrometheusMetrics(nil)

	pm.RecordLatency("stage", 2*time.Second, map[string]string{"stage": "stage1"})
	pm.RecordLatency("analyzer", 150*time.Millisecond, map[string]string{"dimension": "title", "status": "fallback"})
	pm.RecordLatency("fetch", time.Second, nil)

	assert.Equal(t, 1, testutil.CollectAndCount(pm.stageDuration, "vidrank_stage_duration_seconds"))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.analyzerDuration, "vidrank_analyzer_duration_seconds"))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.operationLatency, "vidrank_operation_duration_seconds"))
}

func TestPrometheusMetrics_RecordHistogramAndGauge(t *testing.T) {
	pm := NewPrometheusMetrics(nil)

	pm.RecordHistogram("vidrank_analyzer_score", 73, map[string]string{"dimension": "density"})
	pm.RecordHistogram("vidrank_analyzer_score", 40, map[string]string{"dimension": "title"})
	pm.RecordHistogram("llm_latency_seconds", 0.8, map[string]string{"provider": "google", "model": "gemini"})
	pm.RecordHistogram("payload_bytes", 512, nil)
	pm.RecordGauge("inflight_runs", 4, nil)
	pm.RecordGauge("inflight_runs", 2, nil)

	assert.Equal(t, 2, testutil.CollectAndCount(pm.analyzerScore, "vidrank_analyzer_score"))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.llmLatency, "llm_latency_seconds"))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.histograms, "vidrank_observations"))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.gauges.WithLabelValues("inflight_runs")))
}

func TestPrometheusMetrics_MissingLabelsUseUnknown(t *testing.T) {
	pm := NewPrometheusMetrics(nil)

	pm.RecordCounter("vidrank_runs_total", 1, nil)
	pm.RecordHistogram("llm_latency_seconds", 0.1, map[string]string{"provider": "openai"})

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.runs.WithLabelValues("unknown")))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.llmLatency))
}

func TestPrometheusMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		a := NewPrometheusMetrics(nil)
		b := NewPrometheusMetrics(nil)
		assert.NotSame(t, a.Registry(), b.Registry())
	})
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	pm := NewPrometheusMetrics(nil)
	pm.RecordCounter("vidrank_runs_total", 1, map[string]string{"status": "failed"})

	rec := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `vidrank_runs_total{status="failed"} 1`)
}
