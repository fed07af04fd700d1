package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-vidrank/internal/domain"
)

func TestAnalyzerInvoker_Invoke(t *testing.T) {
	item := domain.NewItem("vid", "Title", 600, "some words here")

	tests := []struct {
		name        string
		fn          func(context.Context, domain.Item) (domain.AnalyzerResult, error)
		wantCalls   int32
		wantScore   int
		wantFailed  bool
		wantFailure bool
		wantMessage string
	}{
		{
			name: "success",
			fn: func(context.Context, domain.Item) (domain.AnalyzerResult, error) {
				return okResult(domain.DimensionRedundancy, 12), nil
			},
			wantCalls: 1,
			wantScore: 12,
		},
		{
			name: "recovers after one failure",
			fn: func() func(context.Context, domain.Item) (domain.AnalyzerResult, error) {
				n := 0
				return func(context.Context, domain.Item) (domain.AnalyzerResult, error) {
					n++
					if n == 1 {
						return domain.AnalyzerResult{}, errBoom
					}
					return okResult(domain.DimensionRedundancy, 30), nil
				}
			}(),
			wantCalls: 2,
			wantScore: 30,
		},
		{
			name: "wrong dimension counts as failure",
			fn: func(context.Context, domain.Item) (domain.AnalyzerResult, error) {
				return okResult(domain.DimensionDensity, 50), nil
			},
			wantCalls:   3,
			wantFailed:  true,
			wantFailure: true,
		},
		{
			name: "out of range score counts as failure",
			fn: func(context.Context, domain.Item) (domain.AnalyzerResult, error) {
				return okResult(domain.DimensionRedundancy, 101), nil
			},
			wantCalls:   3,
			wantFailed:  true,
			wantFailure: true,
		},
		{
			name: "exhausted",
			fn: func(context.Context, domain.Item) (domain.AnalyzerResult, error) {
				return domain.AnalyzerResult{}, errBoom
			},
			wantCalls:   3,
			wantFailed:  true,
			wantFailure: true,
			wantMessage: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAnalyzer{dim: domain.DimensionRedundancy, fn: tt.fn}
			metrics := newFakeMetrics()
			inv := NewAnalyzerInvoker(testPolicy(), metrics)

			got, failure, err := inv.Invoke(context.Background(), a, item)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCalls, a.calls.Load())
			assert.Equal(t, tt.wantFailed, got.Failed)
			if tt.wantFailed {
				assert.Equal(t, domain.RedundancyFallback(), got)
			} else {
				assert.Equal(t, tt.wantScore, got.Score)
			}

			if !tt.wantFailure {
				assert.Nil(t, failure)
				return
			}
			require.NotNil(t, failure)
			assert.Equal(t, domain.FailureAnalyzer, failure.Kind)
			assert.Equal(t, "vid", failure.ItemID)
			assert.Equal(t, domain.DimensionRedundancy, failure.Dimension)
			assert.Equal(t, 3, failure.Attempts)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, failure.Message)
			}
		})
	}
}

func TestAnalyzerInvoker_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeAnalyzer{dim: domain.DimensionDensity, fn: func(context.Context, domain.Item) (domain.AnalyzerResult, error) {
		cancel()
		return domain.AnalyzerResult{}, errBoom
	}}

	_, failure, err := NewAnalyzerInvoker(testPolicy(), nil).Invoke(ctx, a, domain.Item{ID: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, failure)
	assert.Equal(t, int32(1), a.calls.Load())
}
