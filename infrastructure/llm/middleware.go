package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-vidrank/internal/ports"
)

// wrapped forwards Name and Model to the inner provider.
type wrapped struct{ next Provider }

func (w wrapped) Name() string  { return w.next.Name() }
func (w wrapped) Model() string { return w.next.Model() }

type rateLimited struct {
	wrapped
	limiter *rate.Limiter
}

// RateLimitMiddleware paces requests with a token bucket shared by every
// caller of the returned middleware.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next Provider) Provider {
		return &rateLimited{wrapped: wrapped{next}, limiter: limiter}
	}
}

func (r *rateLimited) Generate(ctx context.Context, req Request) (Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Generate(ctx, req)
}

type timeoutProvider struct {
	wrapped
	timeout time.Duration
}

// TimeoutMiddleware bounds each request.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Provider) Provider {
		return &timeoutProvider{wrapped: wrapped{next}, timeout: timeout}
	}
}

func (t *timeoutProvider) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, req)
}

type metered struct {
	wrapped
	collector ports.MetricsCollector
}

// MetricsMiddleware records llm_latency_seconds, llm_requests_total and
// llm_tokens_total labelled by provider, model and status.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next Provider) Provider {
		return &metered{wrapped: wrapped{next}, collector: collector}
	}
}

func (m *metered) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := m.next.Generate(ctx, req)

	labels := map[string]string{
		"provider": m.Name(),
		"model":    req.Model,
		"status":   requestStatus(err),
	}
	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)
	if err == nil {
		m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensIn), withLabel(labels, "token_type", "input"))
		m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensOut), withLabel(labels, "token_type", "output"))
	}
	return resp, err
}

func requestStatus(err error) string {
	if err == nil {
		return "success"
	}
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Type != ErrorTypeUnknown {
		return perr.Type.String()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

func withLabel(labels map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for lk, lv := range labels {
		out[lk] = lv
	}
	out[k] = v
	return out
}

type traced struct {
	wrapped
	tracer trace.Tracer
}

// TracingMiddleware opens one span per request.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	return func(next Provider) Provider {
		return &traced{wrapped: wrapped{next}, tracer: tracer}
	}
}

func (t *traced) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, span := t.tracer.Start(ctx, "llm.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", t.Name()),
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.prompt.length", len(req.Prompt)),
			attribute.Bool("llm.json", req.JSON),
		),
	)
	defer span.End()

	resp, err := t.next.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	span.SetAttributes(
		attribute.Int("llm.tokens.input", resp.TokensIn),
		attribute.Int("llm.tokens.output", resp.TokensOut),
	)
	return resp, nil
}
