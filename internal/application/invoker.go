package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

// AnalyzerInvoker calls one analyzer for one item through a RetryPolicy and
// converts terminal failure into the dimension's canonical fallback.
type AnalyzerInvoker struct {
	policy  RetryPolicy
	metrics ports.MetricsCollector
}

// NewAnalyzerInvoker creates an invoker. metrics may be nil.
func NewAnalyzerInvoker(policy RetryPolicy, metrics ports.MetricsCollector) *AnalyzerInvoker {
	return &AnalyzerInvoker{policy: policy, metrics: metrics}
}

// Invoke returns the analyzer's validated result. When every attempt fails it
// returns the canonical fallback together with a failure record instead of an
// error. The only error Invoke returns is context cancellation.
func (inv *AnalyzerInvoker) Invoke(
	ctx context.Context,
	analyzer ports.Analyzer,
	item domain.Item,
) (domain.AnalyzerResult, *domain.Failure, error) {
	dim := analyzer.Dimension()
	start := time.Now()

	result, err := Retry(ctx, inv.policy, fmt.Sprintf("%s/%s", dim, item.ID),
		func(ctx context.Context) (domain.AnalyzerResult, error) {
			r, err := analyzer.Analyze(ctx, item)
			if err != nil {
				return domain.AnalyzerResult{}, err
			}
			if r.Dimension != dim {
				return domain.AnalyzerResult{}, fmt.Errorf("%w: got dimension %q, want %q",
					domain.ErrInvalidResult, r.Dimension, dim)
			}
			if err := r.Validate(); err != nil {
				return domain.AnalyzerResult{}, err
			}
			return r, nil
		})

	labels := map[string]string{"dimension": string(dim), "status": "success"}
	defer func() {
		if inv.metrics != nil {
			inv.metrics.RecordLatency("analyzer", time.Since(start), labels)
		}
	}()

	if err == nil {
		if inv.metrics != nil {
			inv.metrics.RecordHistogram("vidrank_analyzer_score", float64(result.Score), labels)
		}
		return result, nil, nil
	}

	var retryErr *RetryError
	if !errors.As(err, &retryErr) {
		labels["status"] = "cancelled"
		return domain.AnalyzerResult{}, nil, err
	}

	labels["status"] = "fallback"
	fallback, fbErr := domain.FallbackFor(dim)
	if fbErr != nil {
		return domain.AnalyzerResult{}, nil, fbErr
	}
	terminal := &domain.AnalyzerError{ItemID: item.ID, Dimension: dim, Attempts: retryErr.Attempts, Err: retryErr.Err}
	failure := domain.NewAnalyzerFailure(item.ID, dim, terminal.Attempts, terminal)
	return fallback, &failure, nil
}
