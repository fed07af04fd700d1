package application

import (
	"context"
	"errors"

	"github.com/ahrav/go-vidrank/internal/domain"
)

// stageTwo is the barrier step. It only runs after every PartialAnalysis
// exists and assigns exactly one originality result per surviving item:
//   - one item: the single-item result, comparator not invoked
//   - two or more: one comparator call; omitted or malformed entries fall back
//   - comparator exhausted: every item gets the fallback and one failure is recorded
func (e *Engine) stageTwo(ctx context.Context, run *domain.WorkflowRun) ([]domain.Failure, error) {
	partials := run.Partials
	if len(partials) == 0 {
		return nil, &domain.InsufficientItemsError{
			Required:  e.minItems(),
			Available: 0,
			Requested: len(run.Items),
		}
	}

	results := make(map[string]domain.AnalyzerResult, len(partials))
	var (
		report   domain.ComparisonReport
		failures []domain.Failure
	)

	if len(partials) == 1 {
		results[partials[0].Item.ID] = domain.SingleItemOriginality()
	} else {
		inputs := make([]domain.ComparisonInput, len(partials))
		for i, p := range partials {
			inputs[i] = domain.ComparisonInput{
				ID:         p.Item.ID,
				Title:      p.Item.Title,
				Transcript: p.Item.Transcript,
				Summary:    p.Summary(),
			}
		}

		var err error
		report, err = Retry(ctx, e.opts.Retry, "originality/compare",
			func(ctx context.Context) (domain.ComparisonReport, error) {
				return e.comparator.Compare(ctx, inputs)
			})
		if err != nil {
			var retryErr *RetryError
			if !errors.As(err, &retryErr) {
				return nil, err
			}
			terminal := &domain.AnalyzerError{Dimension: domain.DimensionOriginality, Attempts: retryErr.Attempts, Err: retryErr.Err}
			failures = append(failures, domain.NewComparatorFailure(terminal.Attempts, terminal))
			report = domain.ComparisonReport{}
		}

		for _, p := range partials {
			results[p.Item.ID] = e.originalityFor(run.ID, p.Item.ID, report.Results)
		}
		if _, ok := results[report.MostOriginal]; !ok {
			report.MostOriginal = ""
		}
	}

	for _, p := range partials {
		next := domain.StateStage2Complete
		if results[p.Item.ID].Failed {
			next = domain.StateStage2Degraded
		}
		if err := run.Transition(p.Item.ID, next); err != nil {
			return nil, err
		}
	}

	run.Comparison = domain.ComparisonReport{
		Results:      results,
		MostOriginal: report.MostOriginal,
		Summary:      report.Summary,
	}
	run.Errors.Merge(failures...)
	return failures, nil
}

// originalityFor picks the comparator's entry for one item. Omitted and
// invalid entries are replaced by the fallback without recording a failure;
// only comparator exhaustion counts as a terminal failure.
func (e *Engine) originalityFor(runID, itemID string, got map[string]domain.AnalyzerResult) domain.AnalyzerResult {
	r, ok := got[itemID]
	if !ok {
		if got != nil {
			e.logger.Debug("comparator omitted item", "run_id", runID, "item_id", itemID)
		}
		return domain.OriginalityFallback()
	}
	if r.Dimension == "" {
		r.Dimension = domain.DimensionOriginality
	}
	if r.Dimension != domain.DimensionOriginality {
		e.logger.Warn("comparator returned wrong dimension", "run_id", runID, "item_id", itemID, "dimension", r.Dimension)
		return domain.OriginalityFallback()
	}
	if err := r.Validate(); err != nil {
		e.logger.Warn("comparator returned invalid result", "run_id", runID, "item_id", itemID, "err", err)
		return domain.OriginalityFallback()
	}
	return r
}
