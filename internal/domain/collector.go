package domain

import (
	"errors"
	"sync"
)

// FailureKind classifies a non-fatal failure surfaced alongside a run's results.
type FailureKind string

const (
	// FailureItemFetch means an item could not be retrieved and was dropped.
	FailureItemFetch FailureKind = "item_fetch"

	// FailureAnalyzer means a Stage1 analyzer was exhausted and a fallback was used.
	FailureAnalyzer FailureKind = "analyzer_terminal"

	// FailureComparator means the comparator was exhausted and every item
	// received the multi-item originality fallback.
	FailureComparator FailureKind = "comparator_terminal"
)

// Failure is one non-fatal failure record.
type Failure struct {
	Kind      FailureKind `json:"kind"`
	ItemID    string      `json:"item_id,omitempty"`
	Locator   string      `json:"locator,omitempty"`
	Dimension Dimension   `json:"dimension,omitempty"`
	Attempts  int         `json:"attempts,omitempty"`
	Message   string      `json:"message"`
}

// NewFetchFailure records an item dropped before Stage1.
func NewFetchFailure(locator string, err error) Failure {
	return Failure{Kind: FailureItemFetch, Locator: locator, Message: errMessage(err)}
}

// NewAnalyzerFailure records a Stage1 analyzer whose retries were exhausted.
func NewAnalyzerFailure(itemID string, d Dimension, attempts int, err error) Failure {
	return Failure{
		Kind:      FailureAnalyzer,
		ItemID:    itemID,
		Dimension: d,
		Attempts:  attempts,
		Message:   errMessage(err),
	}
}

// NewComparatorFailure records a comparator whose retries were exhausted.
func NewComparatorFailure(attempts int, err error) Failure {
	return Failure{
		Kind:      FailureComparator,
		Dimension: DimensionOriginality,
		Attempts:  attempts,
		Message:   errMessage(err),
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	// Report the innermost cause; wrappers only repeat the item and dimension.
	var aerr *AnalyzerError
	if errors.As(err, &aerr) && aerr.Err != nil {
		return aerr.Err.Error()
	}
	return err.Error()
}

// ErrorCollector accumulates the non-fatal failures of one run. Stages
// gather failures into their own slots and merge them once every task of the
// stage has finished, so the collector never sees concurrent stage writers.
type ErrorCollector struct {
	mu       sync.Mutex
	failures []Failure
}

// NewErrorCollector returns an empty collector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{failures: make([]Failure, 0)}
}

// Merge appends failures in the given order.
func (c *ErrorCollector) Merge(failures ...Failure) {
	if len(failures) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, failures...)
}

// Failures returns a copy of the recorded failures.
func (c *ErrorCollector) Failures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Failure, len(c.failures))
	copy(out, c.failures)
	return out
}

// Len returns the number of recorded failures.
func (c *ErrorCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures)
}

// Count returns the number of recorded failures of the given kind.
func (c *ErrorCollector) Count(kind FailureKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for _, f := range c.failures {
		if f.Kind == kind {
			n++
		}
	}
	return n
}
