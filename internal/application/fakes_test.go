package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-vidrank/internal/domain"
)

var errBoom = errors.New("boom")

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Delay: time.Millisecond}
}

func okResult(d domain.Dimension, score int) domain.AnalyzerResult {
	r, _ := domain.FallbackFor(d)
	r.Score = score
	r.Failed = false
	return r
}

func densityResult(score int, summary string) domain.AnalyzerResult {
	r := okResult(domain.DimensionDensity, score)
	r.Density = &domain.DensityDetail{KeyFacts: []string{}, Summary: summary}
	return r
}

// fakeAnalyzer scores items from a table; an item with no entry fails.
type fakeAnalyzer struct {
	dim    domain.Dimension
	scores map[string]int
	fn     func(ctx context.Context, item domain.Item) (domain.AnalyzerResult, error)

	calls atomic.Int32
	delay time.Duration

	// load may be shared between analyzers to measure combined concurrency.
	load *loadGauge
}

// loadGauge tracks in-flight calls and the highest value observed.
type loadGauge struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (g *loadGauge) enter() {
	n := g.inFlight.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (g *loadGauge) leave() { g.inFlight.Add(-1) }

func (f *fakeAnalyzer) Dimension() domain.Dimension { return f.dim }

func (f *fakeAnalyzer) Analyze(ctx context.Context, item domain.Item) (domain.AnalyzerResult, error) {
	f.calls.Add(1)
	if f.load != nil {
		f.load.enter()
		defer f.load.leave()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.AnalyzerResult{}, ctx.Err()
		}
	}
	if f.fn != nil {
		return f.fn(ctx, item)
	}
	score, ok := f.scores[item.ID]
	if !ok {
		return domain.AnalyzerResult{}, errBoom
	}
	if f.dim == domain.DimensionDensity {
		return densityResult(score, "summary of "+item.ID), nil
	}
	return okResult(f.dim, score), nil
}

// fakeComparator returns a fixed report or error and captures its inputs.
type fakeComparator struct {
	report domain.ComparisonReport
	err    error

	mu     sync.Mutex
	calls  int
	inputs []domain.ComparisonInput
}

func (f *fakeComparator) Compare(_ context.Context, inputs []domain.ComparisonInput) (domain.ComparisonReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.inputs = inputs
	if f.err != nil {
		return domain.ComparisonReport{}, f.err
	}
	return f.report, nil
}

func (f *fakeComparator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeFetcher resolves locators from a table; unknown locators fail.
type fakeFetcher struct {
	items map[string]domain.Item
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, locator string) (*domain.Item, error) {
	f.calls.Add(1)
	it, ok := f.items[locator]
	if !ok {
		return nil, errBoom
	}
	return &it, nil
}

type fakeStore struct {
	mu        sync.Mutex
	created   []string
	completed []*domain.RunReport
	failed    map[string]error
}

func newFakeStore() *fakeStore { return &fakeStore{failed: map[string]error{}} }

func (s *fakeStore) CreateRun(_ context.Context, runID string, _ []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, runID)
	return nil
}

func (s *fakeStore) CompleteRun(_ context.Context, report *domain.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, report)
	return nil
}

func (s *fakeStore) FailRun(_ context.Context, runID string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[runID] = cause
	return nil
}

func (s *fakeStore) GetRun(context.Context, string) (*domain.RunRecord, error) {
	return nil, errors.New("not implemented")
}

type stageEvent struct {
	stage    string
	items    int
	failures int
	err      error
}

type fakeObserver struct {
	mu     sync.Mutex
	events []stageEvent
	starts map[string]int
}

func (o *fakeObserver) StageStarted(ctx context.Context, _, stage string, items int) context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.starts == nil {
		o.starts = map[string]int{}
	}
	o.starts[stage] = items
	return ctx
}

func (o *fakeObserver) StageFinished(_ context.Context, stage string, failures []domain.Failure, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, stageEvent{stage: stage, items: o.starts[stage], failures: len(failures), err: err})
}

type fakeMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	hists    []float64
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{counters: map[string]float64{}} }

func (m *fakeMetrics) RecordLatency(string, time.Duration, map[string]string) {}

func (m *fakeMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metric
	for _, k := range []string{"status", "kind", "dimension"} {
		if v, ok := labels[k]; ok {
			key += "," + k + "=" + v
		}
	}
	m.counters[key] += value
}

func (m *fakeMetrics) RecordGauge(string, float64, map[string]string) {}

func (m *fakeMetrics) RecordHistogram(_ string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hists = append(m.hists, value)
}

func (m *fakeMetrics) Counter(key string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key]
}
