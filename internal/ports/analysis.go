// Package ports defines the interfaces between the ranking engine and the
// outside world: analyzers, the comparator, the fetch source, storage and
// observability. Adapters live under infrastructure/.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-vidrank/internal/domain"
)

// Analyzer scores one item along one Stage1 dimension.
// Implementations must be safe to call repeatedly with the same item; the
// engine retries failed calls and offers no exactly-once guarantee.
type Analyzer interface {
	// Dimension reports which dimension this analyzer produces.
	Dimension() domain.Dimension

	// Analyze returns a fully populated result whose Dimension matches
	// Dimension(). Any error counts as a failed attempt.
	Analyze(ctx context.Context, item domain.Item) (domain.AnalyzerResult, error)
}

// Comparator judges originality across every surviving item at once.
type Comparator interface {
	// Compare returns results for the items it is confident about. Omitted
	// identifiers are tolerated and receive the multi-item fallback.
	Compare(ctx context.Context, inputs []domain.ComparisonInput) (domain.ComparisonReport, error)
}

// Fetcher resolves an external locator into an item.
type Fetcher interface {
	// Fetch returns the item, or an error when the item could not be
	// retrieved or prepared. A nil item with a nil error is treated as
	// domain.ErrItemNotFound.
	Fetch(ctx context.Context, locator string) (*domain.Item, error)
}

// TranscriptCache stores fetched items so repeated requests skip the network.
type TranscriptCache interface {
	// GetTranscript returns the cached item fetched no earlier than
	// notBefore. ok is false on a miss.
	GetTranscript(ctx context.Context, itemID string, notBefore time.Time) (item *domain.Item, ok bool, err error)

	// PutTranscript inserts or replaces the cached item.
	PutTranscript(ctx context.Context, item domain.Item) error
}

// RunStore persists runs and their ranked output.
type RunStore interface {
	CreateRun(ctx context.Context, runID string, locators []string) error
	CompleteRun(ctx context.Context, report *domain.RunReport) error
	FailRun(ctx context.Context, runID string, cause error) error

	// GetRun returns ErrNotFound when no run has the given id.
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
}

// RunObserver receives stage boundaries of every run.
type RunObserver interface {
	// StageStarted is called before a stage begins. The returned context is
	// used for the stage's work so observers can attach spans.
	StageStarted(ctx context.Context, runID, stage string, items int) context.Context

	// StageFinished is called once the stage's results are merged.
	StageFinished(ctx context.Context, stage string, failures []domain.Failure, err error)
}
