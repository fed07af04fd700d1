// Package application orchestrates a ranking run: fetching items, the
// per-item Stage1 fan-out, the Stage2 comparator barrier and aggregation.
// It also owns configuration loading.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

// Stage names reported to observers and metrics.
const (
	StageFetch     = "fetch"
	StageOne       = "stage1"
	StageTwo       = "stage2"
	StageAggregate = "aggregate"
)

// ErrTooManyLocators is returned when a request exceeds EngineOptions.MaxItems.
var ErrTooManyLocators = errors.New("too many locators")

// EngineOptions tunes one Engine.
type EngineOptions struct {
	// Retry applies to every analyzer and comparator call.
	Retry RetryPolicy

	// MaxConcurrency caps in-flight analyzer calls across all items and
	// dimensions, and concurrent fetches. Zero means unbounded.
	MaxConcurrency int

	// MinItems is the fewest fetched items a run may proceed with. Values
	// below one are treated as one.
	MinItems int

	// MaxItems caps the number of locators per run. Zero disables the cap.
	MaxItems int

	// Weights combine dimension scores into the composite.
	Weights domain.Weights
}

// EngineDeps are the collaborators of an Engine. Only Analyzers and
// Comparator are required.
type EngineDeps struct {
	Analyzers  []ports.Analyzer
	Comparator ports.Comparator
	Fetcher    ports.Fetcher
	Store      ports.RunStore
	Metrics    ports.MetricsCollector
	Observer   ports.RunObserver
	Logger     *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Engine runs the two-stage ranking workflow. An Engine holds no per-run
// state and is safe for concurrent use.
type Engine struct {
	opts       EngineOptions
	analyzers  []ports.Analyzer
	byDim      map[domain.Dimension]ports.Analyzer
	comparator ports.Comparator
	fetcher    ports.Fetcher
	store      ports.RunStore
	metrics    ports.MetricsCollector
	observer   ports.RunObserver
	invoker    *AnalyzerInvoker
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine validates the collaborators and builds an Engine. Exactly one
// analyzer must be supplied for every Stage1 dimension.
func NewEngine(opts EngineOptions, deps EngineDeps) (*Engine, error) {
	if deps.Comparator == nil {
		return nil, fmt.Errorf("%w: comparator is required", domain.ErrInvalidConfiguration)
	}

	byDim := make(map[domain.Dimension]ports.Analyzer, len(deps.Analyzers))
	for _, a := range deps.Analyzers {
		if a == nil {
			return nil, fmt.Errorf("%w: nil analyzer", domain.ErrInvalidConfiguration)
		}
		d := a.Dimension()
		if _, dup := byDim[d]; dup {
			return nil, fmt.Errorf("%w: duplicate analyzer for %s", domain.ErrInvalidConfiguration, d)
		}
		byDim[d] = a
	}

	// Analyzers run in declared dimension order so merged output is stable.
	ordered := make([]ports.Analyzer, 0, len(byDim))
	for _, d := range domain.StageOneDimensions() {
		a, ok := byDim[d]
		if !ok {
			return nil, fmt.Errorf("%w: no analyzer for %s", domain.ErrInvalidConfiguration, d)
		}
		ordered = append(ordered, a)
	}
	if len(ordered) != len(byDim) {
		return nil, fmt.Errorf("%w: analyzers must cover exactly the Stage1 dimensions", domain.ErrInvalidConfiguration)
	}

	if opts.MaxConcurrency < 0 {
		return nil, fmt.Errorf("%w: max concurrency must not be negative", domain.ErrInvalidConfiguration)
	}
	if opts.Weights == (domain.Weights{}) {
		opts.Weights = domain.DefaultWeights()
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Retry.Logger == nil {
		opts.Retry.Logger = logger
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		opts:       opts,
		analyzers:  ordered,
		byDim:      byDim,
		comparator: deps.Comparator,
		fetcher:    deps.Fetcher,
		store:      deps.Store,
		metrics:    deps.Metrics,
		observer:   deps.Observer,
		invoker:    NewAnalyzerInvoker(opts.Retry, deps.Metrics),
		logger:     logger,
		now:        now,
	}, nil
}

func (e *Engine) minItems() int { return max(e.opts.MinItems, 1) }

// Run fetches every locator, drops the ones that fail, and ranks the rest.
// It returns *domain.InsufficientItemsError before Stage1 when fewer than
// MinItems items survive. Every other failure is reported in the result.
func (e *Engine) Run(ctx context.Context, runID string, locators []string) (*domain.RunReport, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("%w: no fetch source configured", domain.ErrInvalidConfiguration)
	}
	if e.opts.MaxItems > 0 && len(locators) > e.opts.MaxItems {
		return nil, fmt.Errorf("%w: %d requested, at most %d allowed", ErrTooManyLocators, len(locators), e.opts.MaxItems)
	}

	start := e.now()
	e.logger.Info("run started", "run_id", runID, "locators", len(locators))
	e.persist(ctx, "create", func(ctx context.Context) error {
		return e.store.CreateRun(ctx, runID, locators)
	})

	var (
		items   []domain.Item
		dropped []string
	)
	fetchFailures, err := e.observe(ctx, runID, StageFetch, len(locators), func(ctx context.Context) ([]domain.Failure, error) {
		var (
			failures []domain.Failure
			err      error
		)
		items, dropped, failures, err = e.fetchAll(ctx, locators)
		return failures, err
	})
	if err != nil {
		return nil, e.fail(ctx, runID, err)
	}

	if len(items) < e.minItems() {
		return nil, e.fail(ctx, runID, &domain.InsufficientItemsError{
			Required:  e.minItems(),
			Available: len(items),
			Requested: len(locators),
		})
	}

	report, err := e.analyze(ctx, runID, items, dropped, fetchFailures)
	if err != nil {
		return nil, e.fail(ctx, runID, err)
	}
	e.finish(ctx, report, start)
	return report, nil
}

// Analyze ranks items that were fetched elsewhere. Items repeating an
// earlier id are dropped and reported like fetch failures.
func (e *Engine) Analyze(ctx context.Context, runID string, items []domain.Item) (*domain.RunReport, error) {
	unique, dups := e.uniqueItems(items)
	if len(unique) < e.minItems() {
		return nil, &domain.InsufficientItemsError{
			Required:  e.minItems(),
			Available: len(unique),
			Requested: len(items),
		}
	}
	start := e.now()
	report, err := e.analyze(ctx, runID, unique, nil, dups)
	if err != nil {
		e.recordRun("failed")
		return nil, err
	}
	e.finish(ctx, report, start)
	return report, nil
}

// AnalyzeOne runs a single Stage1 analyzer against one item with the
// engine's retry policy. The fallback is returned when retries are exhausted.
func (e *Engine) AnalyzeOne(ctx context.Context, d domain.Dimension, item domain.Item) (domain.AnalyzerResult, *domain.Failure, error) {
	a, ok := e.byDim[d]
	if !ok {
		return domain.AnalyzerResult{}, nil, fmt.Errorf("%w: %q has no per-item analyzer", domain.ErrUnknownDimension, d)
	}
	return e.invoker.Invoke(ctx, a, item)
}

// Fetch resolves one locator through the configured fetch source.
func (e *Engine) Fetch(ctx context.Context, locator string) (*domain.Item, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("%w: no fetch source configured", domain.ErrInvalidConfiguration)
	}
	item, err := e.fetcher.Fetch(ctx, locator)
	if err == nil && item == nil {
		err = domain.ErrItemNotFound
	}
	if err != nil {
		return nil, domain.NewItemFetchError(locator, err)
	}
	return item, nil
}

func (e *Engine) analyze(
	ctx context.Context,
	runID string,
	items []domain.Item,
	dropped []string,
	fetchFailures []domain.Failure,
) (*domain.RunReport, error) {
	run := domain.NewWorkflowRun(runID, items, e.now())
	for _, loc := range dropped {
		run.Drop(loc)
	}
	run.Errors.Merge(fetchFailures...)

	if _, err := e.observe(ctx, runID, StageOne, len(items), func(ctx context.Context) ([]domain.Failure, error) {
		return e.stageOne(ctx, run)
	}); err != nil {
		return nil, err
	}

	if _, err := e.observe(ctx, runID, StageTwo, len(run.Partials), func(ctx context.Context) ([]domain.Failure, error) {
		return e.stageTwo(ctx, run)
	}); err != nil {
		return nil, err
	}

	if _, err := e.observe(ctx, runID, StageAggregate, len(run.Partials), func(context.Context) ([]domain.Failure, error) {
		run.Ranked = domain.Rank(run.Partials, run.Comparison.Results, e.opts.Weights)
		for _, r := range run.Ranked {
			if err := run.Transition(r.Item.ID, domain.StateAggregated); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}); err != nil {
		return nil, err
	}

	return run.Report(e.now()), nil
}

// observe brackets one stage with observer callbacks, latency and failure metrics.
func (e *Engine) observe(
	ctx context.Context,
	runID, stage string,
	items int,
	fn func(context.Context) ([]domain.Failure, error),
) ([]domain.Failure, error) {
	start := time.Now()
	stageCtx := ctx
	if e.observer != nil {
		stageCtx = e.observer.StageStarted(ctx, runID, stage, items)
	}

	failures, err := fn(stageCtx)

	if e.observer != nil {
		e.observer.StageFinished(stageCtx, stage, failures, err)
	}
	if e.metrics != nil {
		e.metrics.RecordLatency("stage", time.Since(start), map[string]string{"stage": stage})
		for _, f := range failures {
			e.metrics.RecordCounter("vidrank_failures_total", 1, map[string]string{
				"kind":      string(f.Kind),
				"dimension": string(f.Dimension),
			})
		}
	}
	e.logger.Debug("stage finished", "run_id", runID, "stage", stage, "items", items,
		"failures", len(failures), "elapsed", time.Since(start))
	return failures, err
}

func (e *Engine) finish(ctx context.Context, report *domain.RunReport, start time.Time) {
	status := "completed"
	if report.Degraded {
		status = "degraded"
	}
	e.recordRun(status)
	e.logger.Info("run finished",
		"run_id", report.RunID,
		"status", status,
		"items", len(report.Items),
		"failures", len(report.Failures),
		"elapsed", e.now().Sub(start),
	)
	e.persist(ctx, "complete", func(ctx context.Context) error {
		return e.store.CompleteRun(ctx, report)
	})
}

func (e *Engine) fail(ctx context.Context, runID string, err error) error {
	status := "failed"
	if ctx.Err() != nil {
		status = "cancelled"
	}
	e.recordRun(status)
	e.logger.Error("run aborted", "run_id", runID, "status", status, "err", err)
	// The run context may already be cancelled; the status update must still land.
	e.persist(context.WithoutCancel(ctx), "fail", func(ctx context.Context) error {
		return e.store.FailRun(ctx, runID, err)
	})
	return err
}

func (e *Engine) recordRun(status string) {
	if e.metrics != nil {
		e.metrics.RecordCounter("vidrank_runs_total", 1, map[string]string{"status": status})
	}
}

// persist runs a store operation when a store is configured. Storage is
// best effort: a failure is logged and never changes the run outcome.
func (e *Engine) persist(ctx context.Context, op string, fn func(context.Context) error) {
	if e.store == nil {
		return
	}
	if err := fn(ctx); err != nil {
		e.logger.Warn("run persistence failed", "op", op, "err", err)
	}
}
