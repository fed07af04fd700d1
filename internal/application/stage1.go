package application

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-vidrank/internal/domain"
)

// fetchAll resolves every locator concurrently. Failed locators are dropped
// and recorded; the surviving items keep request order. A locator resolving
// to an item already seen is dropped as a duplicate.
func (e *Engine) fetchAll(
	ctx context.Context,
	locators []string,
) (items []domain.Item, dropped []string, failures []domain.Failure, err error) {
	slots := make([]*domain.Item, len(locators))
	errs := make([]error, len(locators))

	g, gctx := errgroup.WithContext(ctx)
	if e.opts.MaxConcurrency > 0 {
		g.SetLimit(e.opts.MaxConcurrency)
	}
	for i, loc := range locators {
		g.Go(func() error {
			it, err := e.fetcher.Fetch(gctx, loc)
			if err == nil && it == nil {
				err = domain.ErrItemNotFound
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = domain.NewItemFetchError(loc, err)
				return nil
			}
			slots[i] = it
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	fetched := make([]domain.Item, 0, len(locators))
	for i, loc := range locators {
		if errs[i] != nil {
			e.logger.Warn("dropping item", "locator", loc, "err", errs[i])
			dropped = append(dropped, loc)
			failures = append(failures, domain.NewFetchFailure(loc, errs[i]))
			continue
		}
		it := *slots[i]
		if it.Locator == "" {
			it.Locator = loc
		}
		fetched = append(fetched, it)
	}

	items, dups := e.uniqueItems(fetched)
	for _, d := range dups {
		dropped = append(dropped, d.Locator)
	}
	failures = append(failures, dups...)
	return items, dropped, failures, nil
}

// uniqueItems keeps the first item for each id. Later items with the same
// id are dropped and reported as item fetch failures.
func (e *Engine) uniqueItems(items []domain.Item) ([]domain.Item, []domain.Failure) {
	seen := make(map[string]struct{}, len(items))
	kept := make([]domain.Item, 0, len(items))
	var dups []domain.Failure
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			err := domain.NewItemFetchError(it.Locator, fmt.Errorf("duplicate of item %s", it.ID))
			e.logger.Warn("dropping item", "item_id", it.ID, "locator", it.Locator, "err", err)
			f := domain.NewFetchFailure(it.Locator, err)
			f.ItemID = it.ID
			dups = append(dups, f)
			continue
		}
		seen[it.ID] = struct{}{}
		kept = append(kept, it)
	}
	return kept, dups
}

// stageOne fans out every (item, dimension) pair under one concurrency
// limit. Each task owns a distinct slot, so no task observes another's
// output; slots are merged into PartialAnalysis values after Wait.
func (e *Engine) stageOne(ctx context.Context, run *domain.WorkflowRun) ([]domain.Failure, error) {
	items := run.Items
	results := make([][]domain.AnalyzerResult, len(items))
	slotFailures := make([][]*domain.Failure, len(items))
	for i, it := range items {
		results[i] = make([]domain.AnalyzerResult, len(e.analyzers))
		slotFailures[i] = make([]*domain.Failure, len(e.analyzers))
		if err := run.Transition(it.ID, domain.StateStage1Running); err != nil {
			return nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.opts.MaxConcurrency > 0 {
		g.SetLimit(e.opts.MaxConcurrency)
	}
	for i, item := range items {
		for j, a := range e.analyzers {
			g.Go(func() error {
				r, f, err := e.invoker.Invoke(gctx, a, item)
				if err != nil {
					return err
				}
				results[i][j] = r
				slotFailures[i][j] = f
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failures []domain.Failure
	run.Partials = make([]domain.PartialAnalysis, 0, len(items))
	for i, item := range items {
		p := domain.PartialAnalysis{
			Item:    item,
			Results: make(map[domain.Dimension]domain.AnalyzerResult, len(e.analyzers)),
		}
		for j, a := range e.analyzers {
			p.Results[a.Dimension()] = results[i][j]
			if f := slotFailures[i][j]; f != nil {
				failures = append(failures, *f)
			}
		}
		run.Partials = append(run.Partials, p)

		next := domain.StateStage1Complete
		if p.Degraded() {
			next = domain.StateStage1Degraded
		}
		if err := run.Transition(item.ID, next); err != nil {
			return nil, err
		}
		if err := run.Transition(item.ID, domain.StateAwaitingBarrier); err != nil {
			return nil, err
		}
	}

	run.Errors.Merge(failures...)
	return failures, nil
}
