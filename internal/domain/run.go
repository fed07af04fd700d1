package domain

import (
	"fmt"
	"sync"
	"time"
)

// ItemState is the lifecycle position of one item within a run.
type ItemState int

const (
	StatePending ItemState = iota
	StateStage1Running
	StateStage1Complete
	StateStage1Degraded
	StateAwaitingBarrier
	StateStage2Complete
	StateStage2Degraded
	StateAggregated
	StateDropped
)

var itemStateNames = map[ItemState]string{
	StatePending:         "PENDING",
	StateStage1Running:   "STAGE1_RUNNING",
	StateStage1Complete:  "STAGE1_COMPLETE(full)",
	StateStage1Degraded:  "STAGE1_COMPLETE(degraded)",
	StateAwaitingBarrier: "AWAITING_BARRIER",
	StateStage2Complete:  "STAGE2_COMPLETE(full)",
	StateStage2Degraded:  "STAGE2_COMPLETE(degraded)",
	StateAggregated:      "AGGREGATED",
	StateDropped:         "DROPPED",
}

// String implements fmt.Stringer.
func (s ItemState) String() string {
	if n, ok := itemStateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("ItemState(%d)", int(s))
}

// MarshalText renders the state by name in JSON payloads.
func (s ItemState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further transition is allowed.
func (s ItemState) Terminal() bool { return s == StateAggregated || s == StateDropped }

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s ItemState) CanTransition(next ItemState) bool {
	switch s {
	case StatePending:
		return next == StateStage1Running || next == StateDropped
	case StateStage1Running:
		return next == StateStage1Complete || next == StateStage1Degraded
	case StateStage1Complete, StateStage1Degraded:
		return next == StateAwaitingBarrier
	case StateAwaitingBarrier:
		return next == StateStage2Complete || next == StateStage2Degraded
	case StateStage2Complete, StateStage2Degraded:
		return next == StateAggregated
	default:
		return false
	}
}

// WorkflowRun is the transient container of one orchestration call. It is
// owned by a single invocation and discarded once the report is built.
type WorkflowRun struct {
	ID        string
	StartedAt time.Time

	Items      []Item
	Partials   []PartialAnalysis
	Comparison ComparisonReport
	Ranked     []RankedItem
	Errors     *ErrorCollector

	mu     sync.Mutex
	states map[string]ItemState
}

// NewWorkflowRun creates a run with every item in the PENDING state.
func NewWorkflowRun(id string, items []Item, now time.Time) *WorkflowRun {
	run := &WorkflowRun{
		ID:        id,
		StartedAt: now,
		Items:     items,
		Errors:    NewErrorCollector(),
		states:    make(map[string]ItemState, len(items)),
	}
	for _, it := range items {
		run.states[it.ID] = StatePending
	}
	return run
}

// Drop records a key that never became an item. Fetch failures are keyed by
// locator because no item identifier exists for them.
func (r *WorkflowRun) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[key] = StateDropped
}

// Transition moves one item to next, rejecting moves the lifecycle forbids.
func (r *WorkflowRun) Transition(itemID string, next ItemState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.states[itemID]
	if !ok {
		return fmt.Errorf("%w: unknown item %q", ErrInvalidTransition, itemID)
	}
	if !cur.CanTransition(next) {
		return fmt.Errorf("%w: item %q %s -> %s", ErrInvalidTransition, itemID, cur, next)
	}
	r.states[itemID] = next
	return nil
}

// State returns the current state of one item.
func (r *WorkflowRun) State(itemID string) (ItemState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[itemID]
	return s, ok
}

// States returns a copy of every recorded state.
func (r *WorkflowRun) States() map[string]ItemState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ItemState, len(r.states))
	for k, v := range r.states {
		out[k] = v
	}
	return out
}

// Report builds the caller-facing result of the run.
func (r *WorkflowRun) Report(now time.Time) *RunReport {
	failures := r.Errors.Failures()
	return &RunReport{
		RunID:             r.ID,
		StartedAt:         r.StartedAt,
		CompletedAt:       now,
		Items:             r.Ranked,
		Summary:           Summarize(r.Ranked),
		MostOriginal:      r.Comparison.MostOriginal,
		ComparisonSummary: r.Comparison.Summary,
		Failures:          failures,
		Degraded:          len(failures) > 0,
		States:            r.States(),
	}
}

// RunReport is what a caller receives from one orchestration call: the
// ranked list plus every non-fatal failure.
type RunReport struct {
	RunID             string               `json:"run_id"`
	StartedAt         time.Time            `json:"started_at"`
	CompletedAt       time.Time            `json:"analyzed_at"`
	Items             []RankedItem         `json:"items"`
	Summary           string               `json:"summary"`
	MostOriginal      string               `json:"most_original,omitempty"`
	ComparisonSummary string               `json:"comparison_summary,omitempty"`
	Failures          []Failure            `json:"failures"`
	Degraded          bool                 `json:"degraded"`
	States            map[string]ItemState `json:"states,omitempty"`
}

// RunStatus is the persisted status of a run.
type RunStatus string

const (
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// StoredItem is the persisted view of one ranked item.
type StoredItem struct {
	ItemID         string  `json:"item_id"`
	Title          string  `json:"title"`
	Rank           int     `json:"rank"`
	Tier           Tier    `json:"recommendation"`
	Composite      float64 `json:"composite_score"`
	Density        int     `json:"density_score"`
	Redundancy     int     `json:"redundancy_score"`
	TitleRelevance int     `json:"title_relevance_score"`
	Originality    int     `json:"originality_score"`
	Degraded       bool    `json:"degraded"`
}

// RunRecord is a persisted run as read back from storage.
type RunRecord struct {
	ID          string       `json:"run_id"`
	Status      RunStatus    `json:"status"`
	Locators    []string     `json:"locators"`
	Summary     string       `json:"summary,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Items       []StoredItem `json:"items"`
	Failures    []Failure    `json:"failures"`
}
